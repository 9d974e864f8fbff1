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

import "bytes"
import "encoding/csv"
import "fmt"
import "io"
import "os"
import "path/filepath"
import "sort"
import "strings"

import "github.com/go-gota/gota/dataframe"
import "github.com/go-gota/gota/series"

/* -------------------------------------------------------------------------- */

// Field separator of registry files.
const RegistrySeparator = ';'

/* -------------------------------------------------------------------------- */

type Technique int

const (
  TechniqueUnknown Technique = iota
  ChipSeq
  AtacSeq
  DnaseSeq
)

func ParseTechnique(str string) Technique {
  switch strings.ToLower(strings.TrimSpace(str)) {
  case "chip-seq":
    return ChipSeq
  case "atac-seq":
    return AtacSeq
  case "dnase-seq":
    return DnaseSeq
  }
  return TechniqueUnknown
}

func (t Technique) String() string {
  switch t {
  case ChipSeq:
    return "chip-seq"
  case AtacSeq:
    return "atac-seq"
  case DnaseSeq:
    return "dnase-seq"
  }
  return "unknown"
}

// ATAC-seq and DNase-seq measure chromatin accessibility.
func (t Technique) IsAccessibility() bool {
  return t == AtacSeq || t == DnaseSeq
}

/* -------------------------------------------------------------------------- */

type StrandRole int

const (
  StrandNone StrandRole = iota
  StrandForward
  StrandReverse
)

func DetectStrandRole(filename string) StrandRole {
  switch {
  case strings.Contains(filename, "forward"):
    return StrandForward
  case strings.Contains(filename, "reverse"):
    return StrandReverse
  }
  return StrandNone
}

func (s StrandRole) String() string {
  switch s {
  case StrandForward:
    return "forward"
  case StrandReverse:
    return "reverse"
  }
  return "none"
}

/* -------------------------------------------------------------------------- */

// Epigenetic marks used for accessibility data instead of a transcription
// factor.
var AccessibilityMarks = []string{"dnasei", "dna accessibility"}

func IsAccessibilityMark(mark string) bool {
  return containsString(AccessibilityMarks, strings.ToLower(mark))
}

/* -------------------------------------------------------------------------- */

// One row of the registry, describing a single physical file.
type TrackRecord struct {
  Genome         string
  Biosource      string
  Chromosome     string
  EpigeneticMark string
  Technique      Technique
  // raw content of the format column, i.e. the column names of flat files
  // or the name of a track format
  Columns        string
  Filename       string
  FilePath       string
  // all fields of the row in registry column order
  Fields       []string
}

func (r TrackRecord) StrandRole() StrandRole {
  if r.Filename != "" {
    return DetectStrandRole(r.Filename)
  }
  return DetectStrandRole(filepath.Base(r.FilePath))
}

func (r TrackRecord) Format() TrackFormat {
  return DetectTrackFormat(r.FilePath)
}

// Point the record to another file. If the format column names a track
// format, it is updated as well.
func (r *TrackRecord) SetPath(filename string) {
  r.FilePath = filename
  r.Filename = filepath.Base(filename)
  if _, err := ParseTrackFormat(r.Columns); err == nil {
    r.Columns = strings.ToLower(DetectTrackFormat(filename).String())
  }
  r.Fields = append([]string{}, r.Fields...)
}

/* -------------------------------------------------------------------------- */

type registrySchema struct {
  genome     int
  biosource  int
  chromosome int
  mark       int
  technique  int
  format     int
  filename   int
  filePath   int
}

func newRegistrySchema(columns []string) (registrySchema, error) {
  idx := func(name string) int {
    for i, c := range columns {
      if strings.TrimSpace(c) == name {
        return i
      }
    }
    return -1
  }
  s := registrySchema{
    genome    : idx("genome"),
    biosource : idx("biosource"),
    chromosome: idx("chromosome"),
    mark      : idx("epigenetic_mark"),
    technique : idx("technique"),
    format    : idx("format"),
    filename  : idx("filename"),
    filePath  : idx("file_path") }
  if s.filePath < 0 {
    return s, fmt.Errorf("registry has no file_path column")
  }
  return s, nil
}

func (s registrySchema) record(fields []string) TrackRecord {
  get := func(i int) string {
    if i < 0 || i >= len(fields) {
      return ""
    }
    return fields[i]
  }
  return TrackRecord{
    Genome        : get(s.genome),
    Biosource     : get(s.biosource),
    Chromosome    : get(s.chromosome),
    EpigeneticMark: get(s.mark),
    Technique     : ParseTechnique(get(s.technique)),
    Columns       : get(s.format),
    Filename      : get(s.filename),
    FilePath      : get(s.filePath),
    Fields        : fields }
}

func (s registrySchema) fields(r TrackRecord, n int) []string {
  fields := make([]string, n)
  copy(fields, r.Fields)
  set := func(i int, value string) {
    if i >= 0 && i < n {
      fields[i] = value
    }
  }
  set(s.genome,     r.Genome)
  set(s.biosource,  r.Biosource)
  set(s.chromosome, r.Chromosome)
  set(s.mark,       r.EpigeneticMark)
  set(s.format,     r.Columns)
  set(s.filename,   r.Filename)
  set(s.filePath,   r.FilePath)
  if r.Technique != TechniqueUnknown {
    set(s.technique, r.Technique.String())
  }
  return fields
}

/* -------------------------------------------------------------------------- */

// Linkage table of all files of an analysis. The table is append-only.
type Registry struct {
  Filename string
  Columns  []string
  Records  []TrackRecord
  schema   registrySchema
}

func ReadRegistry(filename string) (*Registry, error) {
  if !fileExists(filename) {
    return nil, fmt.Errorf("%w: %s", ErrMissingRegistry, filename)
  }
  f, err := os.Open(filename)
  if err != nil {
    return nil, err
  }
  defer f.Close()

  reg, err := NewRegistry(f)
  if err != nil {
    return nil, fmt.Errorf("reading registry `%s' failed: %v", filename, err)
  }
  reg.Filename = filename
  return reg, nil
}

// Read the header line of a delimited table and report whether any data row
// follows.
func readTableHeader(data []byte, separator rune) ([]string, bool, error) {
  r := csv.NewReader(bytes.NewReader(data))
  r.Comma           = separator
  r.FieldsPerRecord = -1
  r.LazyQuotes      = true
  header, err := r.Read()
  if err == io.EOF {
    return nil, false, fmt.Errorf("table has no header")
  }
  if err != nil {
    return nil, false, err
  }
  if _, err := r.Read(); err == io.EOF {
    return header, false, nil
  }
  return header, true, nil
}

func NewRegistry(reader io.Reader) (*Registry, error) {
  data, err := io.ReadAll(reader)
  if err != nil {
    return nil, err
  }
  header, hasRows, err := readTableHeader(data, RegistrySeparator)
  if err != nil {
    return nil, err
  }
  // empty tables are rejected by the dataframe reader
  if !hasRows {
    schema, err := newRegistrySchema(header)
    if err != nil {
      return nil, err
    }
    return &Registry{Columns: header, schema: schema}, nil
  }
  df := dataframe.ReadCSV(bytes.NewReader(data),
    dataframe.WithDelimiter(RegistrySeparator),
    dataframe.HasHeader(true),
    dataframe.DetectTypes(false),
    dataframe.DefaultType(series.String),
    dataframe.NaNValues([]string{}))
  if df.Err != nil {
    return nil, df.Err
  }
  rows := df.Records()
  if len(rows) == 0 {
    return nil, fmt.Errorf("registry has no header")
  }
  schema, err := newRegistrySchema(rows[0])
  if err != nil {
    return nil, err
  }
  reg := Registry{Columns: rows[0], schema: schema}
  for _, fields := range rows[1:] {
    reg.Records = append(reg.Records, schema.record(fields))
  }
  return &reg, nil
}

func (reg *Registry) HasChromosome() bool {
  return reg.schema.chromosome >= 0
}

func (reg *Registry) Contains(filename string) bool {
  for _, r := range reg.Records {
    if r.FilePath == filename {
      return true
    }
  }
  return false
}

func (reg *Registry) Filter(f func(TrackRecord) bool) []TrackRecord {
  result := []TrackRecord{}
  for _, r := range reg.Records {
    if f(r) {
      result = append(result, r)
    }
  }
  return result
}

// Append records to the registry file and to the in-memory table.
func (reg *Registry) Append(records ...TrackRecord) error {
  if len(records) == 0 {
    return nil
  }
  var buffer bytes.Buffer
  w := csv.NewWriter(&buffer)
  w.Comma = RegistrySeparator
  for _, r := range records {
    if err := w.Write(reg.schema.fields(r, len(reg.Columns))); err != nil {
      return err
    }
  }
  w.Flush()
  if err := w.Error(); err != nil {
    return err
  }
  if reg.Filename != "" {
    if err := appendFile(reg.Filename, buffer.Bytes()); err != nil {
      return err
    }
  }
  for _, r := range records {
    r.Fields = reg.schema.fields(r, len(reg.Columns))
    reg.Records = append(reg.Records, r)
  }
  return nil
}

func appendFile(filename string, data []byte) error {
  f, err := os.OpenFile(filename, os.O_RDWR|os.O_APPEND, 0644)
  if err != nil {
    return err
  }
  // make sure the table ends with a newline before appending
  if info, err := f.Stat(); err == nil && info.Size() > 0 {
    last := make([]byte, 1)
    if _, err := f.ReadAt(last, info.Size()-1); err == nil && last[0] != '\n' {
      data = append([]byte{'\n'}, data...)
    }
  }
  if _, err := f.Write(data); err != nil {
    f.Close()
    return err
  }
  return f.Close()
}

/* selections
 * -------------------------------------------------------------------------- */

func matchAny(values []string, x string) bool {
  return len(values) == 0 || containsString(values, x)
}

// Select the files of an analysis: ChIP-seq tracks of the requested marks and
// accessibility tracks of the requested biosources, restricted to the given
// track format. Empty lists match everything.
func (reg *Registry) SelectRows(genomes, biosources, marks, chromosomes []string, format TrackFormat) []TrackRecord {
  seen   := map[string]bool{}
  result := []TrackRecord{}
  add := func(r TrackRecord) {
    if !seen[r.FilePath] {
      seen[r.FilePath] = true
      result = append(result, r)
    }
  }
  match := func(r TrackRecord) bool {
    return matchAny(genomes, r.Genome) && matchAny(biosources, r.Biosource) &&
      matchAny(chromosomes, r.Chromosome) && (format == FormatUnknown || r.Format() == format)
  }
  for _, r := range reg.Records {
    if match(r) && matchAny(marks, r.EpigeneticMark) {
      add(r)
    }
  }
  for _, r := range reg.Records {
    if match(r) && r.Technique.IsAccessibility() {
      add(r)
    }
  }
  return result
}

// Combination of genome, biosource and transcription factor with the list
// of available chromosomes.
type RegistryGroup struct {
  Genome      string
  Biosource   string
  Mark        string
  Chromosomes []string
}

// Group all transcription factor tracks of the registry.
func (reg *Registry) Summary() []RegistryGroup {
  index  := map[[3]string]int{}
  result := []RegistryGroup{}
  for _, r := range reg.Records {
    if IsAccessibilityMark(r.EpigeneticMark) {
      continue
    }
    key := [3]string{r.Genome, r.Biosource, r.EpigeneticMark}
    i, ok := index[key]
    if !ok {
      i = len(result)
      index[key] = i
      result = append(result, RegistryGroup{Genome: r.Genome, Biosource: r.Biosource, Mark: r.EpigeneticMark})
    }
    if !containsString(result[i].Chromosomes, r.Chromosome) {
      result[i].Chromosomes = append(result[i].Chromosomes, r.Chromosome)
    }
  }
  sort.SliceStable(result, func(i, j int) bool {
    a, b := result[i], result[j]
    if a.Genome != b.Genome {
      return a.Genome < b.Genome
    }
    if a.Biosource != b.Biosource {
      return a.Biosource < b.Biosource
    }
    return a.Mark < b.Mark
  })
  return result
}
