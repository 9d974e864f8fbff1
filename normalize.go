/* Copyright (C) 2021 Philipp Benner
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
import "strconv"
import "strings"

import "github.com/pbenner/threadpool"
import "github.com/shenwei356/xopen"
import "gonum.org/v1/gonum/floats"

import "github.com/tfanalyzer/tfanalyzer/lib/progress"

/* -------------------------------------------------------------------------- */

type NormalizeConfig struct {
  ChunkSize int
  Threads   int
  // progress output, nil to disable
  Progress  io.Writer
}

func DefaultNormalizeConfig() NormalizeConfig {
  return NormalizeConfig{
    ChunkSize: DefaultChunkSize,
    Threads  : 1 }
}

/* global extrema
 * -------------------------------------------------------------------------- */

// Running minimum and maximum of log-scaled values. The minimum is seeded
// with zero, so it never exceeds zero.
type Extrema struct {
  Min float64
  Max float64
}

func NewExtrema() Extrema {
  return Extrema{0.0, math.Inf(-1)}
}

func (e Extrema) Add(min, max float64) Extrema {
  if min < e.Min {
    e.Min = min
  }
  if max > e.Max {
    e.Max = max
  }
  return e
}

func (e Extrema) Merge(f Extrema) Extrema {
  return e.Add(f.Min, f.Max)
}

func (e Extrema) Degenerate() bool {
  return !(e.Max > e.Min) || math.IsInf(e.Max, 0) || math.IsInf(e.Min, 0)
}

// Rescale a log value to the unit interval.
func (e Extrema) Scale(x float64) float64 {
  return (x - e.Min)/(e.Max - e.Min)
}

// Inverse of Scale.
func (e Extrema) Unscale(y float64) float64 {
  return y*(e.Max - e.Min) + e.Min
}

/* -------------------------------------------------------------------------- */

// Natural logarithm of a signal value. Zeros map to zero.
func LogSignal(x float64) (float64, error) {
  if x < 0.0 || math.IsNaN(x) {
    return 0.0, fmt.Errorf("invalid signal value `%v'", x)
  }
  if x == 0.0 {
    x = 1.0
  }
  return math.Log(x), nil
}

/* -------------------------------------------------------------------------- */

type NormalizeSummary struct {
  Processed []string
  Excluded  []*ItemError
  Extrema   Extrema
}

func (s NormalizeSummary) String() string {
  return fmt.Sprintf("%d of %d files normalized (global min: %v, global max: %v)",
    len(s.Processed), len(s.Processed)+len(s.Excluded), s.Extrema.Min, s.Extrema.Max)
}

// State of a single file during normalization.
type normalizeItem struct {
  path    string
  logPath string
  format  TrackFormat
  schema  ValueSchema
  extrema Extrema
  err     *ItemError
}

func (item *normalizeItem) fail(kind ErrorKind, err error) {
  item.err = NewItemError(kind, item.path, err)
}

type Normalizer struct {
  Config NormalizeConfig
}

func NewNormalizer(config NormalizeConfig) *Normalizer {
  return &Normalizer{config}
}

func (n *Normalizer) newItem(r TrackRecord) *normalizeItem {
  item := normalizeItem{path: r.FilePath, logPath: r.FilePath + LogScaleSuffix, format: r.Format()}
  if !fileExists(r.FilePath) {
    item.fail(MissingInput, fmt.Errorf("file does not exist"))
    return &item
  }
  // bigWig files and plain bedGraph files without column names are checked
  // against their declared format
  _, err := ParseTrackFormat(r.Columns)
  if item.format == FormatBigWig || (item.format == FormatBedGraph && (err == nil || strings.TrimSpace(r.Columns) == "")) {
    if ok, err := IsValidTrack(r.FilePath, item.format); err != nil {
      item.fail(ReadFailure, err)
      return &item
    } else if !ok {
      item.fail(FormatMismatch, fmt.Errorf("file is not a %s file", item.format))
      return &item
    }
  }
  if item.format == FormatBigWig {
    return &item
  }
  schema, err := NewValueSchema(r.Columns, item.format)
  if err != nil {
    item.fail(FormatMismatch, err)
  }
  item.schema = schema
  return &item
}

func (n *Normalizer) threads() int {
  if n.Config.Threads < 1 {
    return 1
  }
  return n.Config.Threads
}

// Run a pass over all files that are not yet excluded.
func (n *Normalizer) pass(label string, items []*normalizeItem, f func(*normalizeItem)) error {
  threads := n.threads()
  pool    := threadpool.New(threads, 100*threads)
  p       := progress.New(len(items), 100, label, n.Config.Progress)
  return pool.RangeJob(0, len(items), func(i int, pool threadpool.ThreadPool, erf func() error) error {
    if items[i].err == nil {
      f(items[i])
    }
    p.Increment()
    return nil
  })
}

// Normalize all given tracks: log-scale each file (cached in a sibling file),
// determine the global extrema of all log values and rescale every file in
// place to the unit interval. Files that fail are excluded and reported in
// the summary. If the global extrema coincide, no file is rescaled and
// ErrDegenerateNormalization is returned.
func (n *Normalizer) Run(records []TrackRecord) (NormalizeSummary, error) {
  summary := NormalizeSummary{Extrema: NewExtrema()}
  items   := make([]*normalizeItem, len(records))
  for i, r := range records {
    items[i] = n.newItem(r)
  }
  // pass 1: log-scale
  if err := n.pass("log-scaling", items, n.logScale); err != nil {
    return summary, err
  }
  // pass 2: compute per-file extrema and fold them in file order
  if err := n.pass("extrema", items, n.extrema); err != nil {
    return summary, err
  }
  ok := 0
  for _, item := range items {
    if item.err == nil {
      summary.Extrema = summary.Extrema.Merge(item.extrema)
      ok++
    }
  }
  if ok == 0 {
    n.collect(&summary, items)
    Log.Warn("no files were normalized")
    return summary, nil
  }
  if summary.Extrema.Degenerate() {
    n.collect(&summary, items)
    return summary, fmt.Errorf("%w (min: %v, max: %v)", ErrDegenerateNormalization,
      summary.Extrema.Min, summary.Extrema.Max)
  }
  Log.Debugf("global extrema: min=%v max=%v", summary.Extrema.Min, summary.Extrema.Max)
  // pass 3: rescale in place
  e := summary.Extrema
  if err := n.pass("rescaling", items, func(item *normalizeItem) { n.rescale(item, e) }); err != nil {
    return summary, err
  }
  n.collect(&summary, items)
  Log.Info(summary.String())
  return summary, nil
}

func (n *Normalizer) collect(summary *NormalizeSummary, items []*normalizeItem) {
  summary.Processed = nil
  summary.Excluded  = nil
  for _, item := range items {
    if item.err != nil {
      item.err.log("normalize")
      summary.Excluded = append(summary.Excluded, item.err)
    } else {
      summary.Processed = append(summary.Processed, item.path)
    }
  }
}

/* pass 1
 * -------------------------------------------------------------------------- */

func (n *Normalizer) logScale(item *normalizeItem) {
  if n.hasLogCache(item) {
    Log.WithField("file", item.path).Debug("using cached log-scaled file")
    return
  }
  tmp := item.logPath + TmpSuffix
  var err error
  if item.format == FormatBigWig {
    err = n.logScaleTrack(item.path, tmp)
  } else {
    err = n.logScaleFlat(item.path, tmp, item.schema)
  }
  if err == nil {
    err = os.Rename(tmp, item.logPath)
  }
  if err != nil {
    os.Remove(tmp)
    item.fail(ReadFailure, fmt.Errorf("log-scaling failed: %v", err))
  }
}

func (n *Normalizer) hasLogCache(item *normalizeItem) bool {
  if !fileExists(item.logPath) {
    return false
  }
  if item.format == FormatBigWig {
    ok, err := IsBigWigFile(item.logPath)
    return ok && err == nil
  }
  return true
}

func (n *Normalizer) logScaleTrack(filename, target string) error {
  reader, err := OpenBigWig(filename)
  if err != nil {
    return err
  }
  defer reader.Close()

  writer, err := CreateBigWig(target, reader.Genome(), DefaultBigWigParameters())
  if err != nil {
    return err
  }
  if err := TrackScan(reader, n.Config.ChunkSize, func(seqname string, intervals []TrackInterval) error {
    result := make([]TrackInterval, len(intervals))
    for i, r := range intervals {
      v, err := LogSignal(r.Value)
      if err != nil {
        return fmt.Errorf("%s:%d-%d: %v", seqname, r.From, r.To, err)
      }
      result[i] = TrackInterval{r.From, r.To, v}
    }
    return writer.Write(seqname, result)
  }); err != nil {
    writer.Close()
    return err
  }
  return writer.Close()
}

// Scan the rows of a flat file. The first row is reported as header if its
// value field is not numeric.
func scanFlatFile(filename string, schema ValueSchema, header func(string) error, row func([]string, float64) error) error {
  f, err := xopen.Ropen(filename)
  if err != nil {
    return err
  }
  defer f.Close()

  scanner := bufio.NewScanner(f)
  scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
  for i := 1; scanner.Scan(); i++ {
    line := scanner.Text()
    if strings.TrimSpace(line) == "" {
      continue
    }
    fields := splitFlatLine(line)
    if i == 1 && schema.IsHeader(fields) {
      if header != nil {
        if err := header(line); err != nil {
          return err
        }
      }
      continue
    }
    v, err := schema.Value(fields)
    if err != nil {
      return fmt.Errorf("line %d: %v", i, err)
    }
    if err := row(fields, v); err != nil {
      return fmt.Errorf("line %d: %v", i, err)
    }
  }
  return scanner.Err()
}

func (n *Normalizer) logScaleFlat(filename, target string, schema ValueSchema) error {
  w, err := os.Create(target)
  if err != nil {
    return err
  }
  writer := bufio.NewWriter(w)
  if err := scanFlatFile(filename, schema, nil, func(fields []string, x float64) error {
    v, err := LogSignal(x)
    if err != nil {
      return err
    }
    _, err = fmt.Fprintln(writer, formatValue(v))
    return err
  }); err != nil {
    w.Close()
    return err
  }
  if err := writer.Flush(); err != nil {
    w.Close()
    return err
  }
  return w.Close()
}

/* pass 2
 * -------------------------------------------------------------------------- */

func (n *Normalizer) extrema(item *normalizeItem) {
  item.extrema = NewExtrema()
  if item.format == FormatBigWig {
    reader, err := OpenBigWig(item.logPath)
    if err != nil {
      item.fail(ReadFailure, err)
      return
    }
    defer reader.Close()
    summary, err := reader.Summary()
    if err != nil {
      item.fail(ReadFailure, err)
      return
    }
    if summary.BasesCovered > 0 {
      item.extrema = item.extrema.Add(summary.Min, summary.Max)
    }
    return
  }
  values, err := readLogValues(item.logPath)
  if err != nil {
    item.fail(ReadFailure, err)
    return
  }
  if len(values) > 0 {
    item.extrema = item.extrema.Add(floats.Min(values), floats.Max(values))
  }
}

// Read a file with one value per line.
func readLogValues(filename string) ([]float64, error) {
  f, err := xopen.Ropen(filename)
  if err != nil {
    return nil, err
  }
  defer f.Close()

  values  := []float64{}
  scanner := bufio.NewScanner(f)
  for i := 1; scanner.Scan(); i++ {
    line := strings.TrimSpace(scanner.Text())
    if line == "" {
      continue
    }
    v, err := strconv.ParseFloat(line, 64)
    if err != nil {
      return nil, fmt.Errorf("reading `%s' failed at line %d: %v", filename, i, err)
    }
    values = append(values, v)
  }
  return values, scanner.Err()
}

/* pass 3
 * -------------------------------------------------------------------------- */

// Temporary sibling of a file, gzip compressed if the file is.
func tmpFilename(filename string) string {
  if strings.HasSuffix(filename, ".gz") {
    return filename + TmpSuffix + ".gz"
  }
  return filename + TmpSuffix
}

func (n *Normalizer) rescale(item *normalizeItem, e Extrema) {
  tmp := tmpFilename(item.path)
  var err error
  if item.format == FormatBigWig {
    err = n.rescaleTrack(item.logPath, tmp, e)
  } else {
    err = n.rescaleFlat(item.path, item.logPath, tmp, item.schema, e)
  }
  if err == nil {
    err = os.Rename(tmp, item.path)
  }
  if err != nil {
    os.Remove(tmp)
    item.fail(ReadFailure, fmt.Errorf("rescaling failed: %v", err))
  }
}

// The log-scaled track has the interval boundaries of the original track.
func (n *Normalizer) rescaleTrack(logPath, target string, e Extrema) error {
  reader, err := OpenBigWig(logPath)
  if err != nil {
    return err
  }
  defer reader.Close()

  writer, err := CreateBigWig(target, reader.Genome(), DefaultBigWigParameters())
  if err != nil {
    return err
  }
  if err := TrackMap(reader, writer, n.Config.ChunkSize, e.Scale); err != nil {
    writer.Close()
    return err
  }
  return writer.Close()
}

func (n *Normalizer) rescaleFlat(filename, logPath, target string, schema ValueSchema, e Extrema) error {
  values, err := readLogValues(logPath)
  if err != nil {
    return err
  }
  w, err := xopen.Wopen(target)
  if err != nil {
    return err
  }
  k := 0
  if err := scanFlatFile(filename, schema, func(line string) error {
    _, err := fmt.Fprintln(w, strings.TrimRight(line, "\r\n"))
    return err
  }, func(fields []string, _ float64) error {
    if k >= len(values) {
      return fmt.Errorf("log-scaled file `%s' has too few values", logPath)
    }
    fields, err := schema.Replace(fields, e.Scale(values[k]))
    if err != nil {
      return err
    }
    k++
    _, err = fmt.Fprintln(w, strings.Join(fields, FlatSeparator))
    return err
  }); err != nil {
    w.Close()
    return err
  }
  if k != len(values) {
    w.Close()
    return fmt.Errorf("log-scaled file `%s' has too many values", logPath)
  }
  return w.Close()
}
