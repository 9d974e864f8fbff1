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

import   "os"
import   "path/filepath"
import   "strings"
import   "testing"

/* -------------------------------------------------------------------------- */

func TestBedGraph1(t *testing.T) {
  text := "track type=bedGraph\n" +
    "chr1\t0\t10\t1.5\n" +
    "chr1\t10\t20\t2.5\n" +
    "chr2\t5\t8\t-1\n" +
    "chr1\t30\t35\t0\n"
  reader, err := NewBedGraphReader(strings.NewReader(text))
  if err != nil {
    t.Fatal(err)
  }
  if reader.Genome().Length() != 2 {
    t.Error("TestBedGraph1 failed!")
  }
  if n, _ := reader.Genome().SeqLength("chr1"); n != 35 {
    t.Error("TestBedGraph1 failed!")
  }
  r, err := reader.Intervals("chr1", 5, 31)
  if err != nil {
    t.Fatal(err)
  }
  if len(r) != 3 || r[0].From != 0 || r[1].From != 10 || r[2].From != 30 {
    t.Error("TestBedGraph1 failed!")
  }
  // half-open intervals
  if r, _ := reader.Intervals("chr1", 20, 30); len(r) != 0 {
    t.Error("TestBedGraph1 failed!")
  }
  if s, err := reader.Summary(); err != nil || s.Min != -1 || s.Max != 2.5 || s.BasesCovered != 28 {
    t.Error("TestBedGraph1 failed!")
  }
}

func TestBedGraph2(t *testing.T) {
  filename := filepath.Join(t.TempDir(), "test.bedGraph")
  text := "chr2\t5\t8\t1\n" +
    "chr1\t10\t20\t2\n" +
    "Chr1\t0\t5\t3\n" +
    "chr1\t2\t10\t4\n"
  if err := os.WriteFile(filename, []byte(text), 0644); err != nil {
    t.Fatal(err)
  }
  if ok, err := IsBedGraphFile(filename); !ok || err != nil {
    t.Error("TestBedGraph2 failed!")
  }
  if err := SortBedGraph(filename); err != nil {
    t.Fatal(err)
  }
  result, _ := os.ReadFile(filename)
  // sorting is case-sensitive
  if string(result) != "Chr1\t0\t5\t3\nchr1\t2\t10\t4\nchr1\t10\t20\t2\nchr2\t5\t8\t1\n" {
    t.Error("TestBedGraph2 failed!")
  }
  if fileExists(filename + TmpSuffix) {
    t.Error("TestBedGraph2 failed!")
  }
}

func TestBedGraph3(t *testing.T) {
  filename := filepath.Join(t.TempDir(), "test.bedGraph.gz")

  writer, err := CreateBedGraph(filename)
  if err != nil {
    t.Fatal(err)
  }
  writer.Write("chr1", []TrackInterval{{0, 10, 0.25}, {10, 12, 1e-3}})
  if err := writer.Close(); err != nil {
    t.Fatal(err)
  }
  result := readTestTrack(t, filename)
  if len(result["chr1"]) != 2 || result["chr1"][1] != (TrackInterval{10, 12, 1e-3}) {
    t.Error("TestBedGraph3 failed!")
  }
  if ok, _ := IsBedGraphFile(filename); !ok {
    t.Error("TestBedGraph3 failed!")
  }
}

func TestBedGraph4(t *testing.T) {
  filename := filepath.Join(t.TempDir(), "test.bedGraph")
  text := "chr1\t0\t10\t1\n" +
    "chr2\t5\t8\t2\n" +
    "chr1\t20\t30\t3\n"
  if err := os.WriteFile(filename, []byte(text), 0644); err != nil {
    t.Fatal(err)
  }
  reader, err := OpenBedGraph(filename)
  if err != nil {
    t.Fatal(err)
  }
  defer reader.Close()

  // nothing is loaded before the first query
  if len(reader.trees) != 0 || reader.Genome().Length() != 2 {
    t.Error("TestBedGraph4 failed!")
  }
  if s, err := reader.Summary(); err != nil || s.BasesCovered != 23 || s.Max != 3 {
    t.Error("TestBedGraph4 failed!")
  }
  for _, seqname := range []string{"chr2", "chr1", "chr2", "chr1"} {
    r, err := reader.Intervals(seqname, 0, 100)
    if err != nil {
      t.Fatal(err)
    }
    switch seqname {
    case "chr1":
      if len(r) != 2 || r[0].Value != 1 || r[1] != (TrackInterval{20, 30, 3}) {
        t.Error("TestBedGraph4 failed!")
      }
    case "chr2":
      if len(r) != 1 || r[0] != (TrackInterval{5, 8, 2}) {
        t.Error("TestBedGraph4 failed!")
      }
    }
    // a single chromosome is held in memory
    if len(reader.trees) != 1 {
      t.Error("TestBedGraph4 failed!")
    }
  }
  if _, err := reader.Intervals("chr3", 0, 10); err == nil {
    t.Error("TestBedGraph4 failed!")
  }
}
