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
import "encoding/json"
import "errors"
import "fmt"
import "io"
import "os"
import "path/filepath"
import "sort"
import "strconv"
import "strings"

import "github.com/go-gota/gota/dataframe"
import "github.com/go-gota/gota/series"
import "github.com/shenwei356/xopen"
import "github.com/sirupsen/logrus"

/* -------------------------------------------------------------------------- */

// A called peak. The summit is given relative to the start of the peak.
type PeakRecord struct {
  Seqname string
  Start   int
  End     int
  Summit  int
}

func NewPeakRecord(seqname string, start, end, summit int) PeakRecord {
  // peaks without summit are centered
  if summit < 0 {
    summit = (end - start)/2
  }
  return PeakRecord{seqname, start, end, summit}
}

// Window of half-width w around the summit.
func (p PeakRecord) Window(w int) Range {
  return NewWindow(p.Start + p.Summit, w)
}

// Peaks are stored as [start, end, summit] under their chromosome.
func (p PeakRecord) MarshalJSON() ([]byte, error) {
  return json.Marshal([3]int{p.Start, p.End, p.Summit})
}

func (p *PeakRecord) UnmarshalJSON(data []byte) error {
  v := [3]int{}
  if err := json.Unmarshal(data, &v); err != nil {
    return err
  }
  p.Start, p.End, p.Summit = v[0], v[1], v[2]
  return nil
}

/* -------------------------------------------------------------------------- */

// Peaks of one file grouped by chromosome.
type ChromPeaks map[string][]PeakRecord

func (c ChromPeaks) Seqnames() []string {
  r := []string{}
  for seqname := range c {
    r = append(r, seqname)
  }
  sort.Strings(r)
  return r
}

func (c ChromPeaks) fill() {
  for seqname, peaks := range c {
    for i := range peaks {
      peaks[i].Seqname = seqname
    }
  }
}

// Read a tab separated peak table with header. The columns seqnames, start
// and end are required, the PEAK column with summit offsets is optional. A
// missing summit or a summit of -1 denotes the center of the peak.
func ReadPeaks(reader io.Reader) (ChromPeaks, error) {
  data, err := io.ReadAll(reader)
  if err != nil {
    return nil, err
  }
  header, hasRows, err := readTableHeader(data, '\t')
  if err != nil {
    return nil, err
  }
  for _, name := range []string{"seqnames", "start", "end"} {
    if !containsString(header, name) {
      return nil, fmt.Errorf("peak table has no column `%s'", name)
    }
  }
  if !hasRows {
    return ChromPeaks{}, nil
  }
  df := dataframe.ReadCSV(bytes.NewReader(data),
    dataframe.WithDelimiter('\t'),
    dataframe.HasHeader(true),
    dataframe.DetectTypes(false),
    dataframe.DefaultType(series.String),
    dataframe.NaNValues([]string{}))
  if df.Err != nil {
    return nil, df.Err
  }
  names := df.Names()
  seqnames := df.Col("seqnames").Records()
  starts   := df.Col("start"   ).Records()
  ends     := df.Col("end"     ).Records()
  summits  := []string{}
  if containsString(names, "PEAK") {
    summits = df.Col("PEAK").Records()
  }
  parse := func(i int, str string) (int, error) {
    v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
    if err != nil {
      return 0, fmt.Errorf("invalid integer `%s' in row %d", str, i+1)
    }
    return int(v), nil
  }
  peaks := ChromPeaks{}
  for i := range seqnames {
    start, err := parse(i, starts[i])
    if err != nil {
      return nil, err
    }
    end, err := parse(i, ends[i])
    if err != nil {
      return nil, err
    }
    summit := -1
    if len(summits) > 0 && strings.TrimSpace(summits[i]) != "" {
      if summit, err = parse(i, summits[i]); err != nil {
        return nil, err
      }
    }
    peaks[seqnames[i]] = append(peaks[seqnames[i]], NewPeakRecord(seqnames[i], start, end, summit))
  }
  return peaks, nil
}

func ImportPeaks(filename string) (ChromPeaks, error) {
  f, err := xopen.Ropen(filename)
  if err != nil {
    return nil, err
  }
  defer f.Close()

  peaks, err := ReadPeaks(f)
  if err != nil {
    return nil, fmt.Errorf("reading peaks from `%s' failed: %v", filename, err)
  }
  return peaks, nil
}

/* peak and accessibility indices
 * -------------------------------------------------------------------------- */

// Peaks of one biosource: transcription factor -> binding track -> chromosome
// -> peaks.
type PeakIndex map[string]map[string]ChromPeaks

func (index PeakIndex) Factors() []string {
  r := []string{}
  for tf := range index {
    r = append(r, tf)
  }
  sort.Strings(r)
  return r
}

// Binding tracks of a transcription factor in sorted order.
func (index PeakIndex) Tracks(tf string) []string {
  r := []string{}
  for filename := range index[tf] {
    r = append(r, filename)
  }
  sort.Strings(r)
  return r
}

func (index PeakIndex) Contains(tf, filename string) bool {
  _, ok := index[tf][filename]
  return ok
}

func (index PeakIndex) Add(tf, filename string, peaks ChromPeaks) {
  if index[tf] == nil {
    index[tf] = map[string]ChromPeaks{}
  }
  index[tf][filename] = peaks
}

// Accessibility track of one biosource for every chromosome.
type AccessibilityIndex map[string]string

/* -------------------------------------------------------------------------- */

// Directory holding peak and accessibility indices as
// <dir>/<genome>/{chip-seq,atac-seq}/<biosource>.json.
type IndexStore struct {
  Directory string
}

func (s IndexStore) filename(genome, technique, biosource string) string {
  return filepath.Join(s.Directory, genome, technique, biosource+".json")
}

func (s IndexStore) PeakIndexFile(genome, biosource string) string {
  return s.filename(genome, ChipSeq.String(), biosource)
}

func (s IndexStore) AccessibilityIndexFile(genome, biosource string) string {
  return s.filename(genome, AtacSeq.String(), biosource)
}

func loadJSON(filename string, v interface{}) error {
  data, err := os.ReadFile(filename)
  if err != nil {
    return err
  }
  if err := json.Unmarshal(data, v); err != nil {
    return fmt.Errorf("reading `%s' failed: %v", filename, err)
  }
  return nil
}

func saveJSON(filename string, v interface{}) error {
  data, err := json.Marshal(v)
  if err != nil {
    return err
  }
  if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
    return err
  }
  tmp := filename + TmpSuffix
  if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
    return err
  }
  return os.Rename(tmp, filename)
}

// Load the peak index of a biosource. Returns an error wrapping
// os.ErrNotExist if no index exists.
func (s IndexStore) LoadPeakIndex(genome, biosource string) (PeakIndex, error) {
  index := PeakIndex{}
  if err := loadJSON(s.PeakIndexFile(genome, biosource), &index); err != nil {
    return nil, err
  }
  for _, files := range index {
    for _, peaks := range files {
      peaks.fill()
    }
  }
  return index, nil
}

func (s IndexStore) SavePeakIndex(genome, biosource string, index PeakIndex) error {
  return saveJSON(s.PeakIndexFile(genome, biosource), index)
}

func (s IndexStore) LoadAccessibilityIndex(genome, biosource string) (AccessibilityIndex, error) {
  index := AccessibilityIndex{}
  if err := loadJSON(s.AccessibilityIndexFile(genome, biosource), &index); err != nil {
    return nil, err
  }
  return index, nil
}

func (s IndexStore) SaveAccessibilityIndex(genome, biosource string, index AccessibilityIndex) error {
  return saveJSON(s.AccessibilityIndexFile(genome, biosource), index)
}

/* index construction
 * -------------------------------------------------------------------------- */

// Build indices from a data directory laid out as
// <data>/<genome>/<biosource>/chip-seq/<tf>/*.bed with binding tracks next to
// each peak file and <data>/<genome>/<biosource>/atac-seq/*.bw holding one
// accessibility track per chromosome. Existing indices are extended.
type IndexBuilder struct {
  DataDir string
  Store   IndexStore
}

func NewIndexBuilder(dataDir string) IndexBuilder {
  return IndexBuilder{DataDir: dataDir, Store: IndexStore{filepath.Join(dataDir, "index")}}
}

func listDir(dirname string, dirs bool) ([]string, error) {
  entries, err := os.ReadDir(dirname)
  if err != nil {
    if errors.Is(err, os.ErrNotExist) {
      return nil, nil
    }
    return nil, err
  }
  r := []string{}
  for _, e := range entries {
    if e.IsDir() == dirs {
      r = append(r, e.Name())
    }
  }
  return r, nil
}

// Build or extend the indices of all genomes and biosources of the registry.
func (b IndexBuilder) Build(reg *Registry) error {
  genomes    := []string{}
  biosources := []string{}
  factors    := []string{}
  for _, r := range reg.Records {
    genomes    = append(genomes,    r.Genome)
    biosources = append(biosources, r.Biosource)
    if !IsAccessibilityMark(r.EpigeneticMark) {
      factors = append(factors, r.EpigeneticMark)
    }
  }
  genomes    = removeDuplicatesString(genomes)
  biosources = removeDuplicatesString(biosources)
  factors    = removeDuplicatesString(factors)

  for _, genome := range genomes {
    dirs, err := listDir(filepath.Join(b.DataDir, genome), true)
    if err != nil {
      return err
    }
    for _, biosource := range dirs {
      if !containsString(biosources, biosource) {
        continue
      }
      Log.WithFields(logrus.Fields{"genome": genome, "biosource": biosource}).Debug("indexing biosource")
      if err := b.buildPeakIndex(genome, biosource, factors); err != nil {
        return err
      }
      if err := b.buildAccessibilityIndex(genome, biosource); err != nil {
        return err
      }
    }
  }
  return nil
}

func (b IndexBuilder) buildPeakIndex(genome, biosource string, factors []string) error {
  index, err := b.Store.LoadPeakIndex(genome, biosource)
  if err != nil {
    // unreadable indices are rebuilt
    if !errors.Is(err, os.ErrNotExist) {
      NewItemError(ReadFailure, b.Store.PeakIndexFile(genome, biosource), err).log("index")
    }
    index = PeakIndex{}
  }
  n   := 0
  dir := filepath.Join(b.DataDir, genome, biosource, ChipSeq.String())
  tfs, err := listDir(dir, true)
  if err != nil {
    return err
  }
  for _, tf := range tfs {
    if !containsString(factors, tf) {
      continue
    }
    files, err := listDir(filepath.Join(dir, tf), false)
    if err != nil {
      return err
    }
    for _, name := range files {
      if !strings.HasSuffix(strings.ToLower(name), ".bed") {
        continue
      }
      filename := filepath.Join(dir, tf, name)
      track    := replaceExt(filename, ".bw")
      if !fileExists(track) || index.Contains(tf, track) {
        continue
      }
      peaks, err := ImportPeaks(filename)
      if err != nil {
        NewItemError(ReadFailure, filename, err).log("index")
        continue
      }
      index.Add(tf, track, peaks)
      n++
    }
  }
  if len(index) == 0 {
    return nil
  }
  Log.WithFields(logrus.Fields{"genome": genome, "biosource": biosource}).Infof("indexed %d new peak files", n)
  return b.Store.SavePeakIndex(genome, biosource, index)
}

// Chromosome of an accessibility track given by the second to last dot
// separated token of its name, i.e. `sample.chr1.bw'.
func accessibilityTrackSeqname(name string) string {
  fields := strings.Split(name, ".")
  if len(fields) < 2 {
    return ""
  }
  return fields[len(fields)-2]
}

func (b IndexBuilder) buildAccessibilityIndex(genome, biosource string) error {
  index, err := b.Store.LoadAccessibilityIndex(genome, biosource)
  if err != nil {
    // unreadable indices are rebuilt
    if !errors.Is(err, os.ErrNotExist) {
      NewItemError(ReadFailure, b.Store.AccessibilityIndexFile(genome, biosource), err).log("index")
    }
    index = AccessibilityIndex{}
  }
  dir := filepath.Join(b.DataDir, genome, biosource, AtacSeq.String())
  files, err := listDir(dir, false)
  if err != nil {
    return err
  }
  known := map[string]bool{}
  for seqname := range index {
    known[seqname] = true
  }
  sizes := map[string]int64{}
  for _, name := range files {
    if DetectTrackFormat(name) != FormatBigWig || strings.HasSuffix(name, LogScaleSuffix) {
      continue
    }
    seqname := accessibilityTrackSeqname(name)
    if known[seqname] || seqname == "" {
      continue
    }
    info, err := os.Stat(filepath.Join(dir, name))
    if err != nil {
      return err
    }
    // keep the largest track of each chromosome
    if size, ok := sizes[seqname]; !ok || info.Size() > size {
      sizes[seqname] = info.Size()
      index[seqname] = filepath.Join(dir, name)
    }
  }
  if len(index) == 0 {
    return nil
  }
  return b.Store.SaveAccessibilityIndex(genome, biosource, index)
}

// Pretty print an index for debugging.
func (index PeakIndex) String() string {
  var buffer bytes.Buffer
  for _, tf := range index.Factors() {
    for _, filename := range index.Tracks(tf) {
      peaks := index[tf][filename]
      n := 0
      for _, p := range peaks {
        n += len(p)
      }
      fmt.Fprintf(&buffer, "%s\t%s\t%d chromosomes\t%d peaks\n", tf, filename, len(peaks), n)
    }
  }
  return buffer.String()
}
