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

package main

/* -------------------------------------------------------------------------- */

import   "errors"
import   "os"
import   "path/filepath"
import   "testing"

import . "github.com/tfanalyzer/tfanalyzer"

/* -------------------------------------------------------------------------- */

func TestTfAnalyzer1(t *testing.T) {
  dir := t.TempDir()
  if err := os.MkdirAll(filepath.Join(dir, "data"), 0755); err != nil {
    t.Fatal(err)
  }
  // registry row without data
  text := "genome;biosource;chromosome;epigenetic_mark;technique;format;filename;file_path\n" +
    "hg19;liver;chr1;CTCF;chip-seq;bigWig;a.bw;" + filepath.Join(dir, "a.bw") + "\n"
  if err := os.WriteFile(filepath.Join(dir, "data", "linking_table.csv"), []byte(text), 0644); err != nil {
    t.Fatal(err)
  }
  config := Config{Genome: "hg19"}
  err := tfAnalyzer(config, DefaultMergeConfig(), DefaultNormalizeConfig(), DefaultScoreConfig(), dir)
  if !errors.Is(err, ErrNothingToScore) {
    t.Error("TestTfAnalyzer1 failed!")
  }
  if _, err := os.Stat(filepath.Join(dir, "scores")); err == nil {
    t.Error("TestTfAnalyzer1 failed!")
  }
}

func TestTfAnalyzer2(t *testing.T) {
  err := tfAnalyzer(Config{Genome: "hg19"}, DefaultMergeConfig(), DefaultNormalizeConfig(), DefaultScoreConfig(), t.TempDir())
  if !errors.Is(err, ErrMissingRegistry) {
    t.Error("TestTfAnalyzer2 failed!")
  }
}
