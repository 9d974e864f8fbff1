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

import   "fmt"
import   "os"
import   "path/filepath"
import   "strings"
import   "testing"

/* -------------------------------------------------------------------------- */

// Replacement for bedGraphToBigWig and bigWigMerge. Conversion fails for
// unsorted input, merging adds values of identical intervals. Conversion of
// files whose name contains failConvert always fails after writing a partial
// target.
type testToolRunner struct {
  calls       []string
  failConvert string
}

func (runner *testToolRunner) Run(name string, args ...string) error {
  runner.calls = append(runner.calls, name+" "+strings.Join(args, " "))
  switch name {
  case "bedGraphToBigWig":
    return runner.convert(args[0], args[1], args[2])
  case "bigWigMerge":
    return runner.merge(args[0], args[1], args[2])
  }
  return fmt.Errorf("unknown tool `%s'", name)
}

func (runner *testToolRunner) convert(source, chromSizes, target string) error {
  if runner.failConvert != "" && strings.Contains(filepath.Base(source), runner.failConvert) {
    os.WriteFile(target, []byte("partial"), 0644)
    return fmt.Errorf("conversion of `%s' failed", source)
  }
  genome := Genome{}
  if err := genome.Import(chromSizes); err != nil {
    return err
  }
  reader, err := OpenBedGraph(source)
  if err != nil {
    return err
  }
  if s := reader.Genome().Seqnames; !sortedStrings(s) {
    return fmt.Errorf("input is not sorted")
  }
  writer, err := CreateBigWig(target, genome, DefaultBigWigParameters())
  if err != nil {
    return err
  }
  if err := TrackMap(reader, writer, 0, func(x float64) float64 { return x }); err != nil {
    writer.Close()
    return err
  }
  return writer.Close()
}

func (runner *testToolRunner) merge(filename1, filename2, target string) error {
  r1, err := OpenBigWig(filename1)
  if err != nil {
    return err
  }
  defer r1.Close()
  r2, err := OpenBigWig(filename2)
  if err != nil {
    return err
  }
  defer r2.Close()

  writer, err := CreateBedGraph(target)
  if err != nil {
    return err
  }
  if err := TrackScan(r1, 0, func(seqname string, intervals []TrackInterval) error {
    result := []TrackInterval{}
    for _, r := range intervals {
      s, _ := r2.Intervals(seqname, r.From, r.To)
      for _, x := range s {
        r.Value += x.Value
      }
      result = append(result, r)
    }
    return writer.Write(seqname, result)
  }); err != nil {
    writer.Close()
    return err
  }
  return writer.Close()
}

// Number of calls of a tool whose arguments contain all given strings.
func (runner *testToolRunner) count(name string, args ...string) int {
  n := 0
  for _, call := range runner.calls {
    if !strings.HasPrefix(call, name+" ") {
      continue
    }
    match := true
    for _, arg := range args {
      if !strings.Contains(call, arg) {
        match = false
      }
    }
    if match {
      n++
    }
  }
  return n
}

func sortedStrings(s []string) bool {
  for i := 1; i < len(s); i++ {
    if s[i-1] > s[i] {
      return false
    }
  }
  return true
}

/* -------------------------------------------------------------------------- */

func TestFindPairs1(t *testing.T) {
  records := []TrackRecord{
    {Genome: "hg19", Biosource: "liver", Chromosome: "chr1", Technique: AtacSeq, FilePath: "/d/X.forward.bedgraph"},
    {Genome: "hg19", Biosource: "liver", Chromosome: "chr1", Technique: AtacSeq, FilePath: "/d/X.reverse.bedgraph"},
    {Genome: "hg19", Biosource: "liver", Chromosome: "chr1", Technique: AtacSeq, FilePath: "/d/Y.forward.bedgraph"} }

  pairs := FindPairs(records, true)
  if len(pairs) != 1 {
    t.Fatal("TestFindPairs1 failed!")
  }
  if pairs[0][0].FilePath != "/d/X.forward.bedgraph" || pairs[0][1].FilePath != "/d/X.reverse.bedgraph" {
    t.Error("TestFindPairs1 failed!")
  }
  // different chromosomes do not pair unless chromosomes are ignored
  records[1].Chromosome = "chr2"
  if len(FindPairs(records, true)) != 0 || len(FindPairs(records, false)) != 1 {
    t.Error("TestFindPairs1 failed!")
  }
  records[1].Chromosome = "chr1"
  records[1].Biosource  = "kidney"
  if len(FindPairs(records, true)) != 0 {
    t.Error("TestFindPairs1 failed!")
  }
}

func TestFindPairs2(t *testing.T) {
  // three tracks sharing an identifier, first match wins
  records := []TrackRecord{
    {Genome: "hg19", Biosource: "liver", FilePath: "/d/X.forward.1.bw"},
    {Genome: "hg19", Biosource: "liver", FilePath: "/d/X.reverse.1.bw"},
    {Genome: "hg19", Biosource: "liver", FilePath: "/d/X.reverse.2.bw"} }
  pairs := FindPairs(records, false)
  if len(pairs) != 1 || pairs[0][1].FilePath != "/d/X.reverse.1.bw" {
    t.Error("TestFindPairs2 failed!")
  }
}

func TestMergedTrackName1(t *testing.T) {
  if MergedTrackName("/data/hg19/ENCFF1_liver.forward.bw") != "/data/hg19/ENCFF1_merged.bedGraph" {
    t.Error("TestMergedTrackName1 failed!")
  }
  if !(MergeConfig{AllowedFormats: []string{"bigWig"}}).ConvertMerged() {
    t.Error("TestMergedTrackName1 failed!")
  }
  if (MergeConfig{AllowedFormats: []string{"bigWig", "bedGraph"}}).ConvertMerged() {
    t.Error("TestMergedTrackName1 failed!")
  }
}

/* -------------------------------------------------------------------------- */

func setupMergeTest(t *testing.T) (string, *Registry, MergeConfig, *testToolRunner) {
  dir := t.TempDir()
  chromSizes := filepath.Join(dir, "hg19.chrom.sizes")
  os.WriteFile(chromSizes, []byte("chr1\t1000\nchr2\t1000\n"), 0644)

  // forward track is unsorted and needs a second conversion attempt
  os.WriteFile(filepath.Join(dir, "S1_a.forward.bedGraph"),
    []byte("chr2\t0\t10\t1\nchr1\t0\t10\t2\nchr1\t10\t20\t3\n"), 0644)
  writeTestBigWig(t, filepath.Join(dir, "S1_a.reverse.bw"), NewGenome([]string{"chr1", "chr2"}, []int{1000, 1000}),
    map[string][]TrackInterval{
      "chr1": {{0, 10, 10}, {10, 20, 20}},
      "chr2": {{0, 10, 30}} })

  filename := filepath.Join(dir, "linking_table.csv")
  writeTestRegistry(t, filename,
    fmt.Sprintf("hg19;liver;chr1;dna accessibility;atac-seq;bedGraph;S1_a.forward.bedGraph;%s", filepath.Join(dir, "S1_a.forward.bedGraph")),
    fmt.Sprintf("hg19;liver;chr1;dna accessibility;atac-seq;bigWig;S1_a.reverse.bw;%s", filepath.Join(dir, "S1_a.reverse.bw")),
    fmt.Sprintf("hg19;liver;chr1;CTCF;chip-seq;bigWig;S1_chip.bw;%s", filepath.Join(dir, "S1_chip.bw")))
  reg, err := ReadRegistry(filename)
  if err != nil {
    t.Fatal(err)
  }
  runner := &testToolRunner{}
  config := DefaultMergeConfig()
  config.Tools.Runner = runner
  config.ChromSizes   = NewChromSizes([]string{chromSizes}, "")
  return dir, reg, config, runner
}

func TestMerger1(t *testing.T) {
  dir, reg, config, runner := setupMergeTest(t)

  summary, err := NewMerger(config).Run(reg)
  if err != nil {
    t.Fatal(err)
  }
  target := filepath.Join(dir, "S1_merged.bw")
  if summary.Pairs != 1 || len(summary.Merged) != 1 || summary.Merged[0] != target || len(summary.Failed) != 0 {
    t.Fatal("TestMerger1 failed!")
  }
  // two attempts for the unsorted forward track, one for the merged track
  if runner.count("bedGraphToBigWig") != 3 || runner.count("bigWigMerge") != 1 {
    t.Error("TestMerger1 failed!")
  }
  result := readTestTrack(t, target)
  if len(result["chr1"]) != 2 || result["chr1"][1].Value != 23 || result["chr2"][0].Value != 31 {
    t.Error("TestMerger1 failed!")
  }
  // intermediate files are removed
  for _, name := range []string{"S1_a.forward.bedGraph", "S1_a.forward.bw", "S1_a.reverse.bw", "S1_merged.bedGraph"} {
    if fileExists(filepath.Join(dir, name)) {
      t.Errorf("TestMerger1 failed: `%s' still exists", name)
    }
  }
  reg, err = ReadRegistry(reg.Filename)
  if err != nil {
    t.Fatal(err)
  }
  if len(reg.Records) != 4 {
    t.Fatal("TestMerger1 failed!")
  }
  if r := reg.Records[3]; r.FilePath != target || r.Technique != AtacSeq || r.Biosource != "liver" || r.Chromosome != "chr1" {
    t.Error("TestMerger1 failed!")
  }
}

func TestMerger2(t *testing.T) {
  _, reg, config, runner := setupMergeTest(t)

  if _, err := NewMerger(config).Run(reg); err != nil {
    t.Fatal(err)
  }
  n := len(runner.calls)

  // a second run neither calls tools nor adds rows
  reg, err := ReadRegistry(reg.Filename)
  if err != nil {
    t.Fatal(err)
  }
  summary, err := NewMerger(config).Run(reg)
  if err != nil {
    t.Fatal(err)
  }
  if len(summary.Merged) != 0 || len(summary.Skipped) != 1 || len(summary.Failed) != 0 {
    t.Error("TestMerger2 failed!")
  }
  if len(runner.calls) != n {
    t.Error("TestMerger2 failed!")
  }
  if reg, _ := ReadRegistry(reg.Filename); len(reg.Records) != 4 {
    t.Error("TestMerger2 failed!")
  }
}

func TestMerger3(t *testing.T) {
  dir, reg, config, _ := setupMergeTest(t)
  // conversion without chromosome sizes fails, the batch continues
  config.ChromSizes = NewChromSizes(nil, "")

  summary, err := NewMerger(config).Run(reg)
  if err != nil {
    t.Fatal(err)
  }
  if len(summary.Failed) != 1 || summary.Failed[0].Kind != MissingInput {
    t.Error("TestMerger3 failed!")
  }
  // source files are kept
  if !fileExists(filepath.Join(dir, "S1_a.forward.bedGraph")) || !fileExists(filepath.Join(dir, "S1_a.reverse.bw")) {
    t.Error("TestMerger3 failed!")
  }
  if len(reg.Records) != 3 {
    t.Error("TestMerger3 failed!")
  }
}

func TestMerger4(t *testing.T) {
  dir, _, config, runner := setupMergeTest(t)
  runner.failConvert = "S1_a.forward"

  // second pair with a sorted bedGraph track
  os.WriteFile(filepath.Join(dir, "S2_b.forward.bedGraph"), []byte("chr1\t0\t10\t1\n"), 0644)
  writeTestBigWig(t, filepath.Join(dir, "S2_b.reverse.bw"), NewGenome([]string{"chr1"}, []int{1000}),
    map[string][]TrackInterval{
      "chr1": {{0, 10, 4}} })
  filename := filepath.Join(dir, "linking_table2.csv")
  writeTestRegistry(t, filename,
    fmt.Sprintf("hg19;liver;chr1;dna accessibility;atac-seq;bedGraph;S1_a.forward.bedGraph;%s", filepath.Join(dir, "S1_a.forward.bedGraph")),
    fmt.Sprintf("hg19;liver;chr1;dna accessibility;atac-seq;bigWig;S1_a.reverse.bw;%s", filepath.Join(dir, "S1_a.reverse.bw")),
    fmt.Sprintf("hg19;liver;chr1;dna accessibility;atac-seq;bedGraph;S2_b.forward.bedGraph;%s", filepath.Join(dir, "S2_b.forward.bedGraph")),
    fmt.Sprintf("hg19;liver;chr1;dna accessibility;atac-seq;bigWig;S2_b.reverse.bw;%s", filepath.Join(dir, "S2_b.reverse.bw")))
  reg, err := ReadRegistry(filename)
  if err != nil {
    t.Fatal(err)
  }
  summary, err := NewMerger(config).Run(reg)
  if err != nil {
    t.Fatal(err)
  }
  if summary.Pairs != 2 || len(summary.Failed) != 1 || len(summary.Merged) != 1 {
    t.Fatal("TestMerger4 failed!")
  }
  if e := summary.Failed[0]; e.Kind != ConversionFailure || e.Path != filepath.Join(dir, "S1_a.forward.bedGraph") {
    t.Error("TestMerger4 failed!")
  }
  // one attempt before and one after sorting
  if runner.count("bedGraphToBigWig", "S1_a.forward") != 2 {
    t.Error("TestMerger4 failed!")
  }
  // partial output is removed, sources of the failed pair are kept
  if fileExists(filepath.Join(dir, "S1_a.forward.bw")) {
    t.Error("TestMerger4 failed!")
  }
  if !fileExists(filepath.Join(dir, "S1_a.forward.bedGraph")) || !fileExists(filepath.Join(dir, "S1_a.reverse.bw")) {
    t.Error("TestMerger4 failed!")
  }
  // the later pair is merged and registered
  target := filepath.Join(dir, "S2_merged.bw")
  if summary.Merged[0] != target || !fileExists(target) {
    t.Error("TestMerger4 failed!")
  }
  reg, err = ReadRegistry(filename)
  if err != nil {
    t.Fatal(err)
  }
  if len(reg.Records) != 5 || reg.Records[4].FilePath != target {
    t.Error("TestMerger4 failed!")
  }
}

func TestMerger5(t *testing.T) {
  dir, _, config, runner := setupMergeTest(t)

  // both pairs map to S_merged.bw
  genome := NewGenome([]string{"chr1"}, []int{1000})
  rows   := []string{}
  for _, name := range []string{"S_1.forward.bw", "S_1.reverse.bw", "S_2.forward.bw", "S_2.reverse.bw"} {
    writeTestBigWig(t, filepath.Join(dir, name), genome, map[string][]TrackInterval{
      "chr1": {{0, 10, 1}} })
    rows = append(rows, fmt.Sprintf("hg19;liver;chr1;dna accessibility;atac-seq;bigWig;%s;%s", name, filepath.Join(dir, name)))
  }
  filename := filepath.Join(dir, "linking_table2.csv")
  writeTestRegistry(t, filename, rows...)
  reg, err := ReadRegistry(filename)
  if err != nil {
    t.Fatal(err)
  }
  summary, err := NewMerger(config).Run(reg)
  if err != nil {
    t.Fatal(err)
  }
  if summary.Pairs != 2 || len(summary.Failed) != 2 || len(summary.Merged) != 0 || len(summary.Skipped) != 0 {
    t.Fatal("TestMerger5 failed!")
  }
  if runner.count("bigWigMerge") != 0 || fileExists(filepath.Join(dir, "S_merged.bw")) {
    t.Error("TestMerger5 failed!")
  }
  for _, name := range []string{"S_1.forward.bw", "S_1.reverse.bw", "S_2.forward.bw", "S_2.reverse.bw"} {
    if !fileExists(filepath.Join(dir, name)) {
      t.Errorf("TestMerger5 failed: `%s' was removed", name)
    }
  }
  if reg, _ := ReadRegistry(filename); len(reg.Records) != 4 {
    t.Error("TestMerger5 failed!")
  }
}
