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

import   "errors"
import   "os"
import   "path/filepath"
import   "strings"
import   "testing"

/* -------------------------------------------------------------------------- */

const testRegistryHeader = "genome;biosource;chromosome;epigenetic_mark;technique;format;filename;file_path\n"

func writeTestRegistry(t *testing.T, filename string, rows ...string) {
  text := testRegistryHeader + strings.Join(rows, "\n")
  if len(rows) > 0 {
    text += "\n"
  }
  if err := os.WriteFile(filename, []byte(text), 0644); err != nil {
    t.Fatal(err)
  }
}

/* -------------------------------------------------------------------------- */

func TestRegistry1(t *testing.T) {
  filename := filepath.Join(t.TempDir(), "linking_table.csv")
  writeTestRegistry(t, filename,
    "hg19;liver;chr1;CTCF;chip-seq;bigWig;a.bw;/data/a.bw",
    "hg19;liver;chr1;dnasei;dnase-seq;bigWig;b.bw;/data/b.bw",
    "hg19;kidney;chr2;ATF3;chip-seq;CHROM,START,END,SIGNAL_VALUE;c.bed;/data/c.bed",
    "hg19;liver;chr1;dna accessibility;atac-seq;bedGraph;x.forward.bedGraph;/data/x.forward.bedGraph")

  reg, err := ReadRegistry(filename)
  if err != nil {
    t.Fatal(err)
  }
  if len(reg.Records) != 4 || !reg.HasChromosome() {
    t.Fatal("TestRegistry1 failed!")
  }
  r := reg.Records[3]
  if r.Technique != AtacSeq || r.StrandRole() != StrandForward || r.Format() != FormatBedGraph {
    t.Error("TestRegistry1 failed!")
  }
  if reg.Records[2].Columns != "CHROM,START,END,SIGNAL_VALUE" {
    t.Error("TestRegistry1 failed!")
  }
  if !reg.Contains("/data/b.bw") || reg.Contains("/data/d.bw") {
    t.Error("TestRegistry1 failed!")
  }
  // chip-seq rows of CTCF plus accessibility rows of liver
  rows := reg.SelectRows([]string{"hg19"}, []string{"liver"}, []string{"CTCF"}, nil, FormatBigWig)
  if len(rows) != 2 || rows[0].FilePath != "/data/a.bw" || rows[1].FilePath != "/data/b.bw" {
    t.Error("TestRegistry1 failed!")
  }
  groups := reg.Summary()
  if len(groups) != 2 || groups[0].Biosource != "kidney" || groups[1].Mark != "CTCF" {
    t.Error("TestRegistry1 failed!")
  }
}

func TestRegistry2(t *testing.T) {
  filename := filepath.Join(t.TempDir(), "linking_table.csv")
  writeTestRegistry(t, filename,
    "hg19;liver;chr1;dna accessibility;atac-seq;bedGraph;x_1.forward.bedGraph;/data/x_1.forward.bedGraph")
  // missing trailing newline
  text, _ := os.ReadFile(filename)
  os.WriteFile(filename, []byte(strings.TrimSuffix(string(text), "\n")), 0644)

  reg, err := ReadRegistry(filename)
  if err != nil {
    t.Fatal(err)
  }
  row := reg.Records[0]
  row.SetPath("/data/x_merged.bw")
  if err := reg.Append(row); err != nil {
    t.Fatal(err)
  }
  if len(reg.Records) != 2 {
    t.Error("TestRegistry2 failed!")
  }
  reg, err = ReadRegistry(filename)
  if err != nil {
    t.Fatal(err)
  }
  if len(reg.Records) != 2 {
    t.Fatal("TestRegistry2 failed!")
  }
  r := reg.Records[1]
  if r.FilePath != "/data/x_merged.bw" || r.Filename != "x_merged.bw" || r.Columns != "bigwig" {
    t.Error("TestRegistry2 failed!")
  }
  if r.Genome != "hg19" || r.Biosource != "liver" || r.Technique != AtacSeq {
    t.Error("TestRegistry2 failed!")
  }
}

func TestRegistry3(t *testing.T) {
  _, err := ReadRegistry(filepath.Join(t.TempDir(), "missing.csv"))
  if !errors.Is(err, ErrMissingRegistry) {
    t.Error("TestRegistry3 failed!")
  }
}

func TestRegistry4(t *testing.T) {
  // a table without rows is an empty registry
  filename := filepath.Join(t.TempDir(), "linking_table.csv")
  writeTestRegistry(t, filename)

  reg, err := ReadRegistry(filename)
  if err != nil {
    t.Fatal(err)
  }
  if len(reg.Records) != 0 || len(reg.Columns) != 8 || !reg.HasChromosome() {
    t.Fatal("TestRegistry4 failed!")
  }
  if summary, err := NewMerger(DefaultMergeConfig()).Run(reg); err != nil || summary.Pairs != 0 {
    t.Error("TestRegistry4 failed!")
  }
  if err := reg.Append(TrackRecord{Genome: "hg19", Technique: ChipSeq, FilePath: "/data/a.bw"}); err != nil {
    t.Fatal(err)
  }
  reg, err = ReadRegistry(filename)
  if err != nil {
    t.Fatal(err)
  }
  if len(reg.Records) != 1 || reg.Records[0].FilePath != "/data/a.bw" || reg.Records[0].Technique != ChipSeq {
    t.Error("TestRegistry4 failed!")
  }
  if _, err := NewRegistry(strings.NewReader("")); err == nil {
    t.Error("TestRegistry4 failed!")
  }
}

func TestStrandRole1(t *testing.T) {
  filenames := []string{"S1_a.forward.bedGraph", "S1_a.reverse.bw", "S1_merged.bedGraph"}
  roles     := []StrandRole{StrandForward, StrandReverse, StrandNone}
  for i, filename := range filenames {
    if r := DetectStrandRole(filename); r != roles[i] {
      t.Error("TestStrandRole1 failed!")
    }
  }
  if ParseTechnique("ATAC-seq") != AtacSeq || !AtacSeq.IsAccessibility() || ChipSeq.IsAccessibility() {
    t.Error("TestStrandRole1 failed!")
  }
}
