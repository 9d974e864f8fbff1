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

import "bufio"
import "fmt"
import "io"
import "math"
import "os"
import "sort"
import "strconv"
import "strings"
import "sync"

import "github.com/biogo/store/interval"
import "github.com/shenwei356/xopen"

/* -------------------------------------------------------------------------- */

type bedGraphRecord struct {
  TrackInterval
  id uintptr
}

func (r bedGraphRecord) Overlap(b interval.IntRange) bool {
  return r.To > b.Start && r.From < b.End
}

func (r bedGraphRecord) ID() uintptr {
  return r.id
}

func (r bedGraphRecord) Range() interval.IntRange {
  return interval.IntRange{Start: r.From, End: r.To}
}

type bedGraphQuery Range

func (q bedGraphQuery) Overlap(b interval.IntRange) bool {
  return b.End > q.From && b.Start < q.To
}

/* -------------------------------------------------------------------------- */

func isBedGraphComment(line string) bool {
  return len(line) == 0 || line[0] == '#' ||
    strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser")
}

func parseBedGraphLine(line string) (string, TrackInterval, error) {
  fields := strings.Fields(line)
  if len(fields) != 4 {
    return "", TrackInterval{}, fmt.Errorf("bedGraph line must have four columns")
  }
  t1, err := strconv.ParseInt(fields[1], 10, 64); if err != nil {
    return "", TrackInterval{}, err
  }
  t2, err := strconv.ParseInt(fields[2], 10, 64); if err != nil {
    return "", TrackInterval{}, err
  }
  t3, err := strconv.ParseFloat(fields[3], 64); if err != nil {
    return "", TrackInterval{}, err
  }
  return fields[0], TrackInterval{int(t1), int(t2), t3}, nil
}

/* reader
 * -------------------------------------------------------------------------- */

// Text interval track. Records are queried through one interval tree per
// chromosome. Readers opened from a file keep only the tree of the most
// recently queried chromosome in memory.
type BedGraphReader struct {
  filename string
  trees    map[string]*interval.IntTree
  genome   Genome
  summary  TrackSummary
  mtx      sync.Mutex
}

// Call f for every record of a bedGraph stream.
func scanBedGraph(reader io.Reader, f func(seqname string, record TrackInterval) error) error {
  scanner := bufio.NewScanner(reader)
  for i := 1; scanner.Scan(); i++ {
    line := strings.TrimSpace(scanner.Text())
    if isBedGraphComment(line) {
      continue
    }
    seqname, record, err := parseBedGraphLine(line)
    if err != nil {
      return fmt.Errorf("line %d: %v", i, err)
    }
    if record.From >= record.To {
      return fmt.Errorf("line %d: invalid interval [%d, %d)", i, record.From, record.To)
    }
    if err := f(seqname, record); err != nil {
      return fmt.Errorf("line %d: %v", i, err)
    }
  }
  return scanner.Err()
}

func insertBedGraphRecord(trees map[string]*interval.IntTree, seqname string, record TrackInterval, id uintptr) error {
  tree, ok := trees[seqname]
  if !ok {
    tree = &interval.IntTree{}
    trees[seqname] = tree
  }
  return tree.Insert(bedGraphRecord{record, id}, false)
}

// Collect chromosomes and summary statistics. Records are inserted into
// interval trees if keep is true.
func (r *BedGraphReader) index(reader io.Reader, keep bool) error {
  r.trees       = make(map[string]*interval.IntTree)
  r.summary.Min = math.Inf( 1)
  r.summary.Max = math.Inf(-1)

  lengths := map[string]int{}
  id      := uintptr(0)

  if err := scanBedGraph(reader, func(seqname string, record TrackInterval) error {
    if _, ok := lengths[seqname]; !ok {
      r.genome.Seqnames = append(r.genome.Seqnames, seqname)
      r.genome.Lengths  = append(r.genome.Lengths,  0)
    }
    if record.To > lengths[seqname] {
      lengths[seqname] = record.To
    }
    r.summary.BasesCovered += uint64(record.To-record.From)
    r.summary.Min         = math.Min(r.summary.Min, record.Value)
    r.summary.Max         = math.Max(r.summary.Max, record.Value)
    r.summary.Sum        += float64(record.To-record.From)*record.Value
    r.summary.SumSquares += float64(record.To-record.From)*record.Value*record.Value
    if keep {
      id++
      return insertBedGraphRecord(r.trees, seqname, record, id)
    }
    return nil
  }); err != nil {
    return err
  }
  for i, seqname := range r.genome.Seqnames {
    r.genome.Lengths[i] = lengths[seqname]
  }
  return nil
}

// Read all records of a stream into memory.
func NewBedGraphReader(reader io.Reader) (*BedGraphReader, error) {
  r := BedGraphReader{}
  if err := r.index(reader, true); err != nil {
    return nil, err
  }
  return &r, nil
}

// Open a bedGraph file. Records are loaded one chromosome at a time when
// they are queried.
func OpenBedGraph(filename string) (*BedGraphReader, error) {
  f, err := xopen.Ropen(filename)
  if err != nil {
    return nil, err
  }
  defer f.Close()

  r := BedGraphReader{filename: filename}
  if err := r.index(f, false); err != nil {
    return nil, fmt.Errorf("reading bedGraph `%s' failed: %v", filename, err)
  }
  return &r, nil
}

// Replace the loaded tree by the records of a single chromosome.
func (r *BedGraphReader) load(seqname string) (*interval.IntTree, error) {
  f, err := xopen.Ropen(r.filename)
  if err != nil {
    return nil, err
  }
  defer f.Close()

  trees := make(map[string]*interval.IntTree)
  id    := uintptr(0)
  if err := scanBedGraph(f, func(name string, record TrackInterval) error {
    if name != seqname {
      return nil
    }
    id++
    return insertBedGraphRecord(trees, name, record, id)
  }); err != nil {
    return nil, fmt.Errorf("reading bedGraph `%s' failed: %v", r.filename, err)
  }
  r.trees = trees
  return trees[seqname], nil
}

func (r *BedGraphReader) tree(seqname string) (*interval.IntTree, error) {
  if tree, ok := r.trees[seqname]; ok {
    return tree, nil
  }
  if r.filename == "" || !r.genome.Contains(seqname) {
    return nil, fmt.Errorf("sequence `%s' not found", seqname)
  }
  return r.load(seqname)
}

// Chromosomes in order of appearance. Lengths are the largest end
// coordinate observed on each chromosome.
func (r *BedGraphReader) Genome() Genome {
  return r.genome
}

func (r *BedGraphReader) Summary() (TrackSummary, error) {
  if r.summary.BasesCovered == 0 {
    return TrackSummary{}, fmt.Errorf("bedGraph track is empty")
  }
  return r.summary, nil
}

func (r *BedGraphReader) Intervals(seqname string, from, to int) ([]TrackInterval, error) {
  r.mtx.Lock()
  defer r.mtx.Unlock()

  tree, err := r.tree(seqname)
  if err != nil {
    return nil, err
  }
  if to <= from {
    return nil, nil
  }
  hits   := tree.Get(bedGraphQuery{from, to})
  result := make([]TrackInterval, len(hits))
  for i, hit := range hits {
    result[i] = hit.(bedGraphRecord).TrackInterval
  }
  sort.SliceStable(result, func(i, j int) bool { return result[i].From < result[j].From })
  return result, nil
}

func (r *BedGraphReader) Close() error {
  r.mtx.Lock()
  defer r.mtx.Unlock()
  r.trees = nil
  return nil
}

/* writer
 * -------------------------------------------------------------------------- */

type BedGraphWriter struct {
  writer *xopen.Writer
}

// Create a bedGraph file, gzip compressed if the name ends with `.gz'.
func CreateBedGraph(filename string) (*BedGraphWriter, error) {
  w, err := xopen.Wopen(filename)
  if err != nil {
    return nil, err
  }
  return &BedGraphWriter{w}, nil
}

func (w *BedGraphWriter) Write(seqname string, intervals []TrackInterval) error {
  for _, r := range intervals {
    if _, err := fmt.Fprintf(w.writer, "%s\t%d\t%d\t%s\n", seqname, r.From, r.To, formatValue(r.Value)); err != nil {
      return err
    }
  }
  return nil
}

func (w *BedGraphWriter) Close() error {
  return w.writer.Close()
}

/* utility
 * -------------------------------------------------------------------------- */

// Check if the first data line of a file is a valid bedGraph record.
func IsBedGraphFile(filename string) (bool, error) {
  f, err := xopen.Ropen(filename)
  if err != nil {
    return false, err
  }
  defer f.Close()

  scanner := bufio.NewScanner(f)
  for scanner.Scan() {
    line := strings.TrimSpace(scanner.Text())
    if isBedGraphComment(line) {
      continue
    }
    _, _, err := parseBedGraphLine(line)
    return err == nil, nil
  }
  return false, scanner.Err()
}

// Sort the lines of a bedGraph file by chromosome name (byte order, i.e.
// case-sensitive) and start position. The file is replaced on success.
func SortBedGraph(filename string) error {
  type line struct {
    seqname string
    from    int
    text    string
  }
  lines := []line{}

  f, err := os.Open(filename)
  if err != nil {
    return err
  }
  scanner := bufio.NewScanner(f)
  scanner.Buffer(make([]byte, 64*1024), 1024*1024)
  for scanner.Scan() {
    text   := scanner.Text()
    fields := strings.Fields(text)
    if len(fields) < 2 {
      lines = append(lines, line{"", -1, text})
      continue
    }
    from, err := strconv.Atoi(fields[1])
    if err != nil {
      from = -1
    }
    lines = append(lines, line{fields[0], from, text})
  }
  f.Close()
  if err := scanner.Err(); err != nil {
    return err
  }
  sort.SliceStable(lines, func(i, j int) bool {
    if lines[i].seqname != lines[j].seqname {
      return lines[i].seqname < lines[j].seqname
    }
    return lines[i].from < lines[j].from
  })
  tmp := filename + TmpSuffix
  g, err := os.Create(tmp)
  if err != nil {
    return err
  }
  w := bufio.NewWriter(g)
  for _, l := range lines {
    if _, err := fmt.Fprintln(w, l.text); err != nil {
      g.Close()
      os.Remove(tmp)
      return err
    }
  }
  if err := w.Flush(); err != nil {
    g.Close()
    os.Remove(tmp)
    return err
  }
  if err := g.Close(); err != nil {
    os.Remove(tmp)
    return err
  }
  return os.Rename(tmp, filename)
}
