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

import   "math"
import   "os"
import   "path/filepath"
import   "testing"

/* -------------------------------------------------------------------------- */

func TestBigWig1(t *testing.T) {
  filename := filepath.Join(t.TempDir(), "test.bw")
  genome   := NewGenome([]string{"chr2", "chr1", "chrX"}, []int{10000, 20000, 500})

  data := map[string][]TrackInterval{}
  for _, seqname := range []string{"chr1", "chr2"} {
    for i := 0; i < 500; i++ {
      data[seqname] = append(data[seqname], TrackInterval{i*20, i*20+10, float64(i%17) - 3.0})
    }
  }
  // many small blocks and a deep index
  writer, err := CreateBigWig(filename, genome, BigWigParameters{BlockSize: 3, ItemsPerSlot: 7})
  if err != nil {
    t.Fatal(err)
  }
  for _, seqname := range []string{"chr1", "chr2", "chrX"} {
    if err := writer.Write(seqname, data[seqname]); err != nil {
      t.Fatal(err)
    }
  }
  if err := writer.Close(); err != nil {
    t.Fatal(err)
  }
  if ok, err := IsBigWigFile(filename); !ok || err != nil {
    t.Error("TestBigWig1 failed!")
  }
  reader, err := OpenBigWig(filename)
  if err != nil {
    t.Fatal(err)
  }
  defer reader.Close()

  if n, err := reader.Genome().SeqLength("chr1"); err != nil || n != 20000 {
    t.Error("TestBigWig1 failed!")
  }
  if !reader.Genome().Contains("chrX") || reader.Genome().Contains("chrY") {
    t.Error("TestBigWig1 failed!")
  }
  // all records
  for _, seqname := range []string{"chr1", "chr2"} {
    r, err := reader.Intervals(seqname, 0, 20000)
    if err != nil {
      t.Fatal(err)
    }
    if len(r) != len(data[seqname]) {
      t.Error("TestBigWig1 failed!")
      continue
    }
    for i := range r {
      if r[i] != data[seqname][i] {
        t.Error("TestBigWig1 failed!")
      }
    }
  }
  // partial overlaps at both ends
  if r, err := reader.Intervals("chr2", 105, 125); err != nil {
    t.Fatal(err)
  } else if len(r) != 2 || r[0].From != 100 || r[1].From != 120 {
    t.Error("TestBigWig1 failed!")
  }
  if r, err := reader.Intervals("chrX", 0, 500); err != nil || len(r) != 0 {
    t.Error("TestBigWig1 failed!")
  }
  if _, err := reader.Intervals("chrY", 0, 500); err == nil {
    t.Error("TestBigWig1 failed!")
  }
  if s, err := reader.Summary(); err != nil {
    t.Fatal(err)
  } else {
    if s.BasesCovered != 2*500*10 {
      t.Error("TestBigWig1 failed!")
    }
    if math.Abs(s.Min + 3.0) > 1e-8 || math.Abs(s.Max - 13.0) > 1e-8 {
      t.Error("TestBigWig1 failed!")
    }
  }
}

func TestBigWig2(t *testing.T) {
  dir    := t.TempDir()
  genome := NewGenome([]string{"chr1"}, []int{100})

  writer, err := CreateBigWig(filepath.Join(dir, "a.bw"), genome, DefaultBigWigParameters())
  if err != nil {
    t.Fatal(err)
  }
  // overlapping records are rejected
  if err := writer.Write("chr1", []TrackInterval{{0, 10, 1.0}, {5, 15, 1.0}}); err == nil {
    t.Error("TestBigWig2 failed!")
  }
  writer.Close()

  // empty track
  writeTestBigWig(t, filepath.Join(dir, "b.bw"), genome, nil)
  reader, err := OpenBigWig(filepath.Join(dir, "b.bw"))
  if err != nil {
    t.Fatal(err)
  }
  if s, err := reader.Summary(); err != nil || s.BasesCovered != 0 || s.Min != 0 || s.Max != 0 {
    t.Error("TestBigWig2 failed!")
  }
  reader.Close()

  // text files are no bigWig files
  os.WriteFile(filepath.Join(dir, "c.bw"), []byte("chr1\t0\t10\t1\n"), 0644)
  if ok, err := IsBigWigFile(filepath.Join(dir, "c.bw")); ok || err != nil {
    t.Error("TestBigWig2 failed!")
  }
  if _, err := OpenBigWig(filepath.Join(dir, "c.bw")); err == nil {
    t.Error("TestBigWig2 failed!")
  }
}
