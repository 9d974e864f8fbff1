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

import "encoding/binary"
import "fmt"
import "io"
import "os"
import "sort"

/* -------------------------------------------------------------------------- */

type BigWigParameters struct {
  BlockSize    int
  ItemsPerSlot int
}

func DefaultBigWigParameters() BigWigParameters {
  return BigWigParameters{
    BlockSize   : 256,
    ItemsPerSlot: 1024 }
}

/* -------------------------------------------------------------------------- */

func IsBigWigFile(filename string) (bool, error) {
  f, err := os.Open(filename)
  if err != nil {
    return false, err
  }
  defer f.Close()

  buf := make([]byte, 4)
  if _, err := io.ReadFull(f, buf); err != nil {
    if err == io.EOF || err == io.ErrUnexpectedEOF {
      return false, nil
    }
    return false, err
  }
  if _, err := bbiByteOrder(buf, BIGWIG_MAGIC); err != nil {
    return false, nil
  }
  return true, nil
}

/* reader
 * -------------------------------------------------------------------------- */

type BigWigReader struct {
  Header   BbiHeader
  reader   io.ReaderAt
  closer   io.Closer
  order    binary.ByteOrder
  genome   Genome
}

func NewBigWigReader(reader io.ReaderAt) (*BigWigReader, error) {
  buf := make([]byte, 4)
  if _, err := reader.ReadAt(buf, 0); err != nil {
    return nil, err
  }
  order, err := bbiByteOrder(buf, BIGWIG_MAGIC)
  if err != nil {
    return nil, fmt.Errorf("not a BigWig file")
  }
  bwr := BigWigReader{reader: reader, order: order}
  // parse header
  if err := readAt(reader, order, 0, bbiHeaderSize, &bwr.Header); err != nil {
    return nil, err
  }
  // parse chromosome list, which is represented as a tree
  if genome, err := readBbiChromTree(reader, order, int64(bwr.Header.CtOffset)); err != nil {
    return nil, err
  } else {
    bwr.genome = genome
  }
  return &bwr, nil
}

func OpenBigWig(filename string) (*BigWigReader, error) {
  f, err := os.Open(filename)
  if err != nil {
    return nil, err
  }
  bwr, err := NewBigWigReader(f)
  if err != nil {
    f.Close()
    return nil, fmt.Errorf("opening bigWig file `%s' failed: %v", filename, err)
  }
  bwr.closer = f
  return bwr, nil
}

func (bwr *BigWigReader) Genome() Genome {
  return bwr.genome
}

// Summary of all values stored in the file as recorded in the file header.
func (bwr *BigWigReader) Summary() (TrackSummary, error) {
  if bwr.Header.Version < 2 || bwr.Header.SummaryOffset == 0 {
    return TrackSummary{}, fmt.Errorf("bigWig file has no summary")
  }
  s := BbiSummary{}
  if err := readAt(bwr.reader, bwr.order, int64(bwr.Header.SummaryOffset), bbiSummarySize, &s); err != nil {
    return TrackSummary{}, err
  }
  return TrackSummary{BasesCovered: s.BasesCovered, Min: s.MinVal, Max: s.MaxVal, Sum: s.SumData, SumSquares: s.SumSquares}, nil
}

// All records on seqname that overlap [from, to), ordered by position.
// Records are not clipped to the query.
func (bwr *BigWigReader) Intervals(seqname string, from, to int) ([]TrackInterval, error) {
  idx, err := bwr.genome.GetIdx(seqname)
  if err != nil {
    return nil, err
  }
  if from < 0 {
    from = 0
  }
  if to <= from {
    return nil, nil
  }
  refs, err := queryBbiRTree(bwr.reader, bwr.order, int64(bwr.Header.IndexOffset), uint32(idx), uint32(from), uint32(to))
  if err != nil {
    return nil, err
  }
  result := []TrackInterval{}
  for _, ref := range refs {
    block := make([]byte, ref.DataSize)
    if _, err := bwr.reader.ReadAt(block, int64(ref.DataOffset)); err != nil {
      return nil, err
    }
    if bwr.Header.UncompressBufSize > 0 {
      if block, err = uncompressSlice(block); err != nil {
        return nil, err
      }
    }
    if result, err = decodeBbiBlock(block, bwr.order, uint32(idx), from, to, result); err != nil {
      return nil, err
    }
  }
  sort.SliceStable(result, func(i, j int) bool { return result[i].From < result[j].From })
  return result, nil
}

func (bwr *BigWigReader) Close() error {
  if bwr.closer != nil {
    return bwr.closer.Close()
  }
  return nil
}

/* writer
 * -------------------------------------------------------------------------- */

// Writes bedGraph type bigWig files without zoom levels. Records of each
// chromosome must be written in increasing order.
type BigWigWriter struct {
  Parameters BigWigParameters
  writer     io.WriteSeeker
  closer     io.Closer
  order      binary.ByteOrder
  genome     Genome
  header     BbiHeader
  summary    BbiSummary
  refs       []bbiBlockRef
  position   int64
  nblocks    uint64
}

func NewBigWigWriter(writer io.WriteSeeker, genome Genome, parameters BigWigParameters) (*BigWigWriter, error) {
  bww := BigWigWriter{
    Parameters: parameters,
    writer    : writer,
    order     : binary.LittleEndian,
    genome    : genome.Sorted(),
    summary   : NewBbiSummary() }
  bww.header.Magic   = BIGWIG_MAGIC
  bww.header.Version = 4
  // reserve space for header and summary
  if _, err := writer.Write(make([]byte, bbiHeaderSize+bbiSummarySize)); err != nil {
    return nil, err
  }
  bww.header.SummaryOffset = bbiHeaderSize
  bww.header.CtOffset      = bbiHeaderSize + bbiSummarySize
  if err := writeBbiChromTree(writer, bww.order, bww.genome); err != nil {
    return nil, err
  }
  if offset, err := writer.Seek(0, io.SeekCurrent); err != nil {
    return nil, err
  } else {
    bww.header.DataOffset = uint64(offset)
  }
  // number of blocks, updated on close
  if err := binary.Write(writer, bww.order, uint64(0)); err != nil {
    return nil, err
  }
  bww.position = int64(bww.header.DataOffset) + 8
  return &bww, nil
}

func CreateBigWig(filename string, genome Genome, parameters BigWigParameters) (*BigWigWriter, error) {
  f, err := os.Create(filename)
  if err != nil {
    return nil, err
  }
  bww, err := NewBigWigWriter(f, genome, parameters)
  if err != nil {
    f.Close()
    return nil, err
  }
  bww.closer = f
  return bww, nil
}

func (bww *BigWigWriter) Write(seqname string, intervals []TrackInterval) error {
  idx, err := bww.genome.GetIdx(seqname)
  if err != nil {
    return err
  }
  for i := 0; i < len(intervals); i += bww.Parameters.ItemsPerSlot {
    slot := intervals[i:iMin(i+bww.Parameters.ItemsPerSlot, len(intervals))]
    for j, r := range slot {
      if r.From >= r.To || (j > 0 && r.From < slot[j-1].To) {
        return fmt.Errorf("invalid record %s:[%d, %d)", seqname, r.From, r.To)
      }
      // values are stored in single precision
      bww.summary.Add(r.From, r.To, float64(float32(r.Value)))
    }
    block, err := encodeBbiBlock(bww.order, idx, slot)
    if err != nil {
      return err
    }
    if n := uint32(len(block)); n > bww.header.UncompressBufSize {
      bww.header.UncompressBufSize = n
    }
    if block, err = compressSlice(block); err != nil {
      return err
    }
    if _, err := bww.writer.Write(block); err != nil {
      return err
    }
    bww.refs = append(bww.refs, bbiBlockRef{
      StartChromIx: uint32(idx),
      StartBase   : uint32(slot[0].From),
      EndChromIx  : uint32(idx),
      EndBase     : uint32(slot[len(slot)-1].To),
      DataOffset  : uint64(bww.position),
      DataSize    : uint64(len(block)) })
    bww.position += int64(len(block))
    bww.nblocks++
  }
  return nil
}

func (bww *BigWigWriter) Close() error {
  sort.SliceStable(bww.refs, func(i, j int) bool {
    return bbiLess(bww.refs[i].StartChromIx, bww.refs[i].StartBase, bww.refs[j].StartChromIx, bww.refs[j].StartBase)
  })
  bww.header.IndexOffset = uint64(bww.position)
  if err := writeBbiRTree(bww.writer, bww.order, bww.position, bww.refs, bww.Parameters.BlockSize, bww.Parameters.ItemsPerSlot); err != nil {
    return bww.close(err)
  }
  // magic number at the end of the file
  if err := binary.Write(bww.writer, bww.order, bww.header.Magic); err != nil {
    return bww.close(err)
  }
  if bww.summary.BasesCovered == 0 {
    bww.summary.MinVal = 0
    bww.summary.MaxVal = 0
  }
  // patch header, summary and block count
  if _, err := bww.writer.Seek(0, io.SeekStart); err != nil {
    return bww.close(err)
  }
  if err := binary.Write(bww.writer, bww.order, bww.header); err != nil {
    return bww.close(err)
  }
  if err := binary.Write(bww.writer, bww.order, bww.summary); err != nil {
    return bww.close(err)
  }
  if _, err := bww.writer.Seek(int64(bww.header.DataOffset), io.SeekStart); err != nil {
    return bww.close(err)
  }
  if err := binary.Write(bww.writer, bww.order, bww.nblocks); err != nil {
    return bww.close(err)
  }
  return bww.close(nil)
}

func (bww *BigWigWriter) close(err error) error {
  if bww.closer != nil {
    if e := bww.closer.Close(); err == nil {
      err = e
    }
  }
  return err
}
