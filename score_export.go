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
import "os"
import "path/filepath"

import "github.com/kshedden/gonpy"
import "github.com/shenwei356/xopen"
import "github.com/sirupsen/logrus"
import "gonum.org/v1/gonum/stat"

/* -------------------------------------------------------------------------- */

type nopCloser struct {
  io.Writer
}

func (nopCloser) Close() error {
  return nil
}

/* -------------------------------------------------------------------------- */

// Samples of a transcription factor across chromosomes in sorted chromosome
// order.
func flattenSamples(buckets map[string][]ScoreSample) ([]string, []ScoreSample) {
  seqnames := []string{}
  samples  := []ScoreSample{}
  for _, seqname := range sortedKeys(buckets) {
    for _, sample := range buckets[seqname] {
      seqnames = append(seqnames, seqname)
      samples  = append(samples,  sample)
    }
  }
  return seqnames, samples
}

// Write samples as n x 4 float64 matrix with columns window start, window
// end, binding mean and accessibility mean.
func WriteScoresNpy(writer io.Writer, samples []ScoreSample) error {
  data := make([]float64, 0, 4*len(samples))
  for _, s := range samples {
    data = append(data, float64(s.WindowStart), float64(s.WindowEnd), s.BindingMean, s.AccessibilityMean)
  }
  bufw := bufio.NewWriter(writer)
  npw, err := gonpy.NewWriter(nopCloser{bufw})
  if err != nil {
    return err
  }
  npw.Shape = []int{len(samples), 4}
  if err := npw.WriteFloat64(data); err != nil {
    return err
  }
  return bufw.Flush()
}

func WriteScoresTable(writer io.Writer, seqnames []string, samples []ScoreSample) error {
  if _, err := fmt.Fprintf(writer, "seqnames\twindow_start\twindow_end\tbinding_mean\taccessibility_mean\n"); err != nil {
    return err
  }
  for i, s := range samples {
    if _, err := fmt.Fprintf(writer, "%s\t%d\t%d\t%s\t%s\n", seqnames[i], s.WindowStart, s.WindowEnd,
      formatValue(s.BindingMean), formatValue(s.AccessibilityMean)); err != nil {
      return err
    }
  }
  return nil
}

/* -------------------------------------------------------------------------- */

type ScoreStatistics struct {
  Samples           int
  BindingMean       float64
  AccessibilityMean float64
}

func NewScoreStatistics(samples []ScoreSample) ScoreStatistics {
  if len(samples) == 0 {
    return ScoreStatistics{}
  }
  x := make([]float64, len(samples))
  y := make([]float64, len(samples))
  for i, s := range samples {
    x[i] = s.BindingMean
    y[i] = s.AccessibilityMean
  }
  return ScoreStatistics{len(samples), stat.Mean(x, nil), stat.Mean(y, nil)}
}

func (s ScoreStatistics) String() string {
  return fmt.Sprintf("%d samples, mean binding: %.4f, mean accessibility: %.4f",
    s.Samples, s.BindingMean, s.AccessibilityMean)
}

/* -------------------------------------------------------------------------- */

func exportScoresNpy(filename string, samples []ScoreSample) error {
  f, err := os.Create(filename)
  if err != nil {
    return err
  }
  if err := WriteScoresNpy(f, samples); err != nil {
    f.Close()
    return err
  }
  return f.Close()
}

func exportScoresTable(filename string, seqnames []string, samples []ScoreSample) error {
  w, err := xopen.Wopen(filename)
  if err != nil {
    return err
  }
  if err := WriteScoresTable(w, seqnames, samples); err != nil {
    w.Close()
    return err
  }
  return w.Close()
}

// Export scores as <dir>/<biosource>/<tf>.npy with a <tf>.tsv sibling that
// also lists chromosomes. Returns the names of all written npy files.
func ExportScores(dir string, result ScoreResult) ([]string, error) {
  files := []string{}
  for _, biosource := range sortedKeys(result) {
    if err := os.MkdirAll(filepath.Join(dir, biosource), 0755); err != nil {
      return files, err
    }
    for _, tf := range sortedKeys(result[biosource]) {
      seqnames, samples := flattenSamples(result[biosource][tf])
      basename := filepath.Join(dir, biosource, tf)
      if err := exportScoresNpy(basename+".npy", samples); err != nil {
        return files, err
      }
      if err := exportScoresTable(basename+".tsv", seqnames, samples); err != nil {
        return files, err
      }
      Log.WithFields(logrus.Fields{
        "biosource": biosource,
        "tf"       : tf,
        "file"     : basename+".npy" }).Info(NewScoreStatistics(samples).String())
      files = append(files, basename+".npy")
    }
  }
  return files, nil
}
