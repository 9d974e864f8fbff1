/* Copyright (C) 2016 Philipp Benner
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package tfanalyzer

/* -------------------------------------------------------------------------- */

import "bytes"
import "compress/zlib"
import "encoding/binary"
import "fmt"
import "io"
import "io/ioutil"
import "math"

/* -------------------------------------------------------------------------- */

const BIGWIG_MAGIC      = 0x888FFC26
const BBI_CHROM_MAGIC   = 0x78CA8C91
const BBI_RTREE_MAGIC   = 0x2468ACE0

const bbiHeaderSize     = 64
const bbiSummarySize    = 40
const bbiZoomHeaderSize = 24
const bbiChromHdrSize   = 32
const bbiRTreeHdrSize   = 48
const bbiBlockHdrSize   = 24

const (
  BbiTypeBedGraph  = 1
  BbiTypeVariable  = 2
  BbiTypeFixed     = 3
)

/* -------------------------------------------------------------------------- */

func readAt(r io.ReaderAt, order binary.ByteOrder, offset int64, size int64, data interface{}) error {
  return binary.Read(io.NewSectionReader(r, offset, size), order, data)
}

// Detect byte order from the magic number at the beginning of a bbi
// structure.
func bbiByteOrder(buf []byte, magic uint32) (binary.ByteOrder, error) {
  if len(buf) < 4 {
    return nil, fmt.Errorf("buffer too short")
  }
  if binary.LittleEndian.Uint32(buf) == magic {
    return binary.LittleEndian, nil
  }
  if binary.BigEndian.Uint32(buf) == magic {
    return binary.BigEndian, nil
  }
  return nil, fmt.Errorf("invalid magic number")
}

// Returns true if (aHi, aLo) < (bHi, bLo).
func bbiLess(aHi, aLo, bHi, bLo uint32) bool {
  if aHi != bHi {
    return aHi < bHi
  }
  return aLo < bLo
}

/* header
 * -------------------------------------------------------------------------- */

type BbiHeader struct {
  Magic             uint32
  Version           uint16
  ZoomLevels        uint16
  CtOffset          uint64
  DataOffset        uint64
  IndexOffset       uint64
  FieldCount        uint16
  DefinedFieldCount uint16
  SqlOffset         uint64
  SummaryOffset     uint64
  UncompressBufSize uint32
  ExtensionOffset   uint64
}

// Whole file summary, stored at SummaryOffset (version >= 2).
type BbiSummary struct {
  BasesCovered uint64
  MinVal       float64
  MaxVal       float64
  SumData      float64
  SumSquares   float64
}

func NewBbiSummary() BbiSummary {
  return BbiSummary{MinVal: math.Inf(1), MaxVal: math.Inf(-1)}
}

func (s *BbiSummary) Add(from, to int, value float64) {
  n := float64(to-from)
  s.BasesCovered += uint64(to-from)
  s.MinVal        = math.Min(s.MinVal, value)
  s.MaxVal        = math.Max(s.MaxVal, value)
  s.SumData      += n*value
  s.SumSquares   += n*value*value
}

/* chromosome tree
 * -------------------------------------------------------------------------- */

type bbiChromTreeHeader struct {
  Magic     uint32
  BlockSize uint32
  KeySize   uint32
  ValSize   uint32
  ItemCount uint64
  Reserved  uint64
}

type bbiNodeHeader struct {
  IsLeaf   uint8
  Reserved uint8
  Count    uint16
}

// Read all (name, id, size) entries of the chromosome B+ tree.
func readBbiChromTree(r io.ReaderAt, order binary.ByteOrder, offset int64) (Genome, error) {
  header := bbiChromTreeHeader{}
  if err := readAt(r, order, offset, bbiChromHdrSize, &header); err != nil {
    return Genome{}, err
  }
  if header.Magic != BBI_CHROM_MAGIC {
    return Genome{}, fmt.Errorf("invalid chromosome tree")
  }
  seqnames := make([]string, header.ItemCount)
  lengths  := make([]int,    header.ItemCount)

  var readNode func(offset int64) error
  readNode = func(offset int64) error {
    node := bbiNodeHeader{}
    if err := readAt(r, order, offset, 4, &node); err != nil {
      return err
    }
    offset += 4
    key := make([]byte, header.KeySize)
    for i := 0; i < int(node.Count); i++ {
      if _, err := r.ReadAt(key, offset); err != nil {
        return err
      }
      offset += int64(header.KeySize)
      if node.IsLeaf != 0 {
        var value [2]uint32
        if err := readAt(r, order, offset, 8, &value); err != nil {
          return err
        }
        offset += int64(header.ValSize)
        if int(value[0]) >= len(seqnames) {
          return fmt.Errorf("invalid chromosome index")
        }
        seqnames[value[0]] = string(bytes.TrimRight(key, "\x00"))
        lengths [value[0]] = int(value[1])
      } else {
        var child uint64
        if err := readAt(r, order, offset, 8, &child); err != nil {
          return err
        }
        offset += 8
        if err := readNode(int64(child)); err != nil {
          return err
        }
      }
    }
    return nil
  }
  if err := readNode(offset + bbiChromHdrSize); err != nil {
    return Genome{}, err
  }
  return NewGenome(seqnames, lengths), nil
}

// Write a single-level chromosome tree. Chromosome ids are the positions
// in the given (sorted) genome.
func writeBbiChromTree(w io.Writer, order binary.ByteOrder, genome Genome) error {
  keySize := 1
  for _, name := range genome.Seqnames {
    keySize = iMax(keySize, len(name))
  }
  header := bbiChromTreeHeader{
    Magic    : BBI_CHROM_MAGIC,
    BlockSize: uint32(iMax(1, genome.Length())),
    KeySize  : uint32(keySize),
    ValSize  : 8,
    ItemCount: uint64(genome.Length()) }
  if err := binary.Write(w, order, header); err != nil {
    return err
  }
  node := bbiNodeHeader{IsLeaf: 1, Count: uint16(genome.Length())}
  if err := binary.Write(w, order, node); err != nil {
    return err
  }
  for i, name := range genome.Seqnames {
    key := make([]byte, keySize)
    copy(key, name)
    if _, err := w.Write(key); err != nil {
      return err
    }
    if err := binary.Write(w, order, [2]uint32{uint32(i), uint32(genome.Lengths[i])}); err != nil {
      return err
    }
  }
  return nil
}

/* R tree index
 * -------------------------------------------------------------------------- */

type bbiRTreeHeader struct {
  Magic         uint32
  BlockSize     uint32
  ItemCount     uint64
  StartChromIx  uint32
  StartBase     uint32
  EndChromIx    uint32
  EndBase       uint32
  EndFileOffset uint64
  ItemsPerSlot  uint32
  Reserved      uint32
}

// Leaf entry of the R tree pointing to a data block.
type bbiBlockRef struct {
  StartChromIx uint32
  StartBase    uint32
  EndChromIx   uint32
  EndBase      uint32
  DataOffset   uint64
  DataSize     uint64
}

func (ref bbiBlockRef) overlaps(chromId, from, to uint32) bool {
  return bbiLess(chromId, from, ref.EndChromIx, ref.EndBase) &&
         bbiLess(ref.StartChromIx, ref.StartBase, chromId, to)
}

type bbiRTreeBranch struct {
  StartChromIx uint32
  StartBase    uint32
  EndChromIx   uint32
  EndBase      uint32
  ChildOffset  uint64
}

// Collect all data blocks overlapping the query region.
func queryBbiRTree(r io.ReaderAt, order binary.ByteOrder, offset int64, chromId, from, to uint32) ([]bbiBlockRef, error) {
  header := bbiRTreeHeader{}
  if err := readAt(r, order, offset, bbiRTreeHdrSize, &header); err != nil {
    return nil, err
  }
  if header.Magic != BBI_RTREE_MAGIC {
    return nil, fmt.Errorf("invalid R tree index")
  }
  result := []bbiBlockRef{}

  var readNode func(offset int64) error
  readNode = func(offset int64) error {
    node := bbiNodeHeader{}
    if err := readAt(r, order, offset, 4, &node); err != nil {
      return err
    }
    offset += 4
    if node.IsLeaf != 0 {
      refs := make([]bbiBlockRef, node.Count)
      if err := readAt(r, order, offset, int64(32*len(refs)), refs); err != nil {
        return err
      }
      for _, ref := range refs {
        if ref.overlaps(chromId, from, to) {
          result = append(result, ref)
        }
      }
    } else {
      branches := make([]bbiRTreeBranch, node.Count)
      if err := readAt(r, order, offset, int64(24*len(branches)), branches); err != nil {
        return err
      }
      for _, b := range branches {
        ref := bbiBlockRef{StartChromIx: b.StartChromIx, StartBase: b.StartBase, EndChromIx: b.EndChromIx, EndBase: b.EndBase}
        if ref.overlaps(chromId, from, to) {
          if err := readNode(int64(b.ChildOffset)); err != nil {
            return err
          }
        }
      }
    }
    return nil
  }
  if err := readNode(offset + bbiRTreeHdrSize); err != nil {
    return nil, err
  }
  return result, nil
}

// Write an R tree over the given (sorted) block references starting at
// offset. Nodes are laid out level by level beginning with the root.
func writeBbiRTree(w io.Writer, order binary.ByteOrder, offset int64, refs []bbiBlockRef, blockSize, itemsPerSlot int) error {
  header := bbiRTreeHeader{
    Magic        : BBI_RTREE_MAGIC,
    BlockSize    : uint32(blockSize),
    ItemCount    : uint64(len(refs)),
    EndFileOffset: uint64(offset),
    ItemsPerSlot : uint32(itemsPerSlot) }
  if len(refs) > 0 {
    header.StartChromIx = refs[0].StartChromIx
    header.StartBase    = refs[0].StartBase
    header.EndChromIx   = refs[len(refs)-1].EndChromIx
    header.EndBase      = refs[len(refs)-1].EndBase
  }
  if err := binary.Write(w, order, header); err != nil {
    return err
  }
  // levels[0] holds the leaf nodes, each node is a range of entries in the
  // level below
  type span struct{ from, to int }
  levels := [][]span{}
  for n := len(refs); ; {
    level := []span{}
    for i := 0; i < n; i += blockSize {
      level = append(level, span{i, iMin(i+blockSize, n)})
    }
    if len(level) == 0 {
      level = append(level, span{0, 0})
    }
    levels = append(levels, level)
    if len(level) == 1 {
      break
    }
    n = len(level)
  }
  // bounds of every node on every level
  bounds := make([][]bbiBlockRef, len(levels))
  for k, level := range levels {
    bounds[k] = make([]bbiBlockRef, len(level))
    for i, s := range level {
      if s.to == s.from {
        continue
      }
      if k == 0 {
        bounds[k][i] = refs[s.from]
        bounds[k][i].EndChromIx = refs[s.to-1].EndChromIx
        bounds[k][i].EndBase    = refs[s.to-1].EndBase
      } else {
        bounds[k][i] = bounds[k-1][s.from]
        bounds[k][i].EndChromIx = bounds[k-1][s.to-1].EndChromIx
        bounds[k][i].EndBase    = bounds[k-1][s.to-1].EndBase
      }
    }
  }
  // file offsets of all nodes, root first
  nodeOffsets := make([][]int64, len(levels))
  position    := offset + bbiRTreeHdrSize
  for k := len(levels)-1; k >= 0; k-- {
    nodeOffsets[k] = make([]int64, len(levels[k]))
    for i, s := range levels[k] {
      nodeOffsets[k][i] = position
      if k == 0 {
        position += 4 + 32*int64(s.to-s.from)
      } else {
        position += 4 + 24*int64(s.to-s.from)
      }
    }
  }
  for k := len(levels)-1; k >= 0; k-- {
    for _, s := range levels[k] {
      node := bbiNodeHeader{Count: uint16(s.to-s.from)}
      if k == 0 {
        node.IsLeaf = 1
      }
      if err := binary.Write(w, order, node); err != nil {
        return err
      }
      for j := s.from; j < s.to; j++ {
        if k == 0 {
          if err := binary.Write(w, order, refs[j]); err != nil {
            return err
          }
        } else {
          b := bounds[k-1][j]
          branch := bbiRTreeBranch{b.StartChromIx, b.StartBase, b.EndChromIx, b.EndBase, uint64(nodeOffsets[k-1][j])}
          if err := binary.Write(w, order, branch); err != nil {
            return err
          }
        }
      }
    }
  }
  return nil
}

/* data blocks
 * -------------------------------------------------------------------------- */

type BbiDataHeader struct {
  ChromId   uint32
  Start     uint32
  End       uint32
  Step      uint32
  Span      uint32
  Type      uint8
  Reserved  uint8
  ItemCount uint16
}

func uncompressSlice(data []byte) ([]byte, error) {
  z, err := zlib.NewReader(bytes.NewReader(data))
  if err != nil {
    return nil, err
  }
  defer z.Close()
  return ioutil.ReadAll(z)
}

func compressSlice(data []byte) ([]byte, error) {
  var buffer bytes.Buffer
  z := zlib.NewWriter(&buffer)
  if _, err := z.Write(data); err != nil {
    return nil, err
  }
  if err := z.Close(); err != nil {
    return nil, err
  }
  return buffer.Bytes(), nil
}

// Decode a (decompressed) data block and append all records overlapping
// [from, to) on the given chromosome.
func decodeBbiBlock(buffer []byte, order binary.ByteOrder, chromId uint32, from, to int, result []TrackInterval) ([]TrackInterval, error) {
  if len(buffer) < bbiBlockHdrSize {
    return result, fmt.Errorf("block length is shorter than %d bytes", bbiBlockHdrSize)
  }
  header := BbiDataHeader{}
  if err := binary.Read(bytes.NewReader(buffer[0:bbiBlockHdrSize]), order, &header); err != nil {
    return result, err
  }
  if header.ChromId != chromId {
    return result, nil
  }
  buffer = buffer[bbiBlockHdrSize:]

  add := func(start, end uint32, value float32) {
    if int(end) > from && int(start) < to {
      result = append(result, TrackInterval{int(start), int(end), float64(value)})
    }
  }
  switch header.Type {
  case BbiTypeBedGraph:
    if len(buffer) < 12*int(header.ItemCount) {
      return result, fmt.Errorf("bedGraph data block has invalid length")
    }
    for i := 0; i < int(header.ItemCount); i++ {
      b := buffer[12*i:]
      add(order.Uint32(b[0:4]), order.Uint32(b[4:8]), math.Float32frombits(order.Uint32(b[8:12])))
    }
  case BbiTypeVariable:
    if len(buffer) < 8*int(header.ItemCount) {
      return result, fmt.Errorf("variable step data block has invalid length")
    }
    for i := 0; i < int(header.ItemCount); i++ {
      b := buffer[8*i:]
      s := order.Uint32(b[0:4])
      add(s, s+header.Span, math.Float32frombits(order.Uint32(b[4:8])))
    }
  case BbiTypeFixed:
    if len(buffer) < 4*int(header.ItemCount) {
      return result, fmt.Errorf("fixed step data block has invalid length")
    }
    for i := 0; i < int(header.ItemCount); i++ {
      s := header.Start + uint32(i)*header.Step
      add(s, s+header.Span, math.Float32frombits(order.Uint32(buffer[4*i:4*i+4])))
    }
  default:
    return result, fmt.Errorf("unsupported block type")
  }
  return result, nil
}

// Encode a bedGraph data block.
func encodeBbiBlock(order binary.ByteOrder, chromId int, intervals []TrackInterval) ([]byte, error) {
  var buffer bytes.Buffer
  header := BbiDataHeader{
    ChromId  : uint32(chromId),
    Start    : uint32(intervals[0].From),
    End      : uint32(intervals[len(intervals)-1].To),
    Type     : BbiTypeBedGraph,
    ItemCount: uint16(len(intervals)) }
  if err := binary.Write(&buffer, order, header); err != nil {
    return nil, err
  }
  for _, r := range intervals {
    item := struct{ Start, End uint32; Value float32 }{uint32(r.From), uint32(r.To), float32(r.Value)}
    if err := binary.Write(&buffer, order, item); err != nil {
      return nil, err
    }
  }
  return buffer.Bytes(), nil
}
