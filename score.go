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

import "errors"
import "fmt"
import "io"
import "os"
import "path/filepath"
import "sort"
import "strings"

import "github.com/pbenner/threadpool"
import "github.com/sirupsen/logrus"

import "github.com/tfanalyzer/tfanalyzer/lib/progress"

/* -------------------------------------------------------------------------- */

type ScoreConfig struct {
  // half-width of the window around each summit
  Width    int
  Threads  int
  // progress output, nil to disable
  Progress io.Writer
}

func DefaultScoreConfig() ScoreConfig {
  return ScoreConfig{Width: 50, Threads: 1}
}

/* -------------------------------------------------------------------------- */

// Mean accessibility and binding signal within the window around a peak
// summit.
type ScoreSample struct {
  WindowStart       int
  WindowEnd         int
  AccessibilityMean float64
  BindingMean       float64
}

// Score samples by biosource, transcription factor and chromosome.
type ScoreResult map[string]map[string]map[string][]ScoreSample

func (result ScoreResult) Len() int {
  n := 0
  for _, tfs := range result {
    for _, seqnames := range tfs {
      for _, samples := range seqnames {
        n += len(samples)
      }
    }
  }
  return n
}

func sortedKeys[V any](m map[string]V) []string {
  r := []string{}
  for k := range m {
    r = append(r, k)
  }
  sort.Strings(r)
  return r
}

/* -------------------------------------------------------------------------- */

// Mean signal within a window. Each interval contributes its value weighted
// by the length of its overlap with the window. Positions without intervals
// count as zero.
func WindowMean(intervals []TrackInterval, window Range) float64 {
  if window.Length() <= 0 {
    return 0.0
  }
  sum := 0.0
  for _, r := range intervals {
    sum += float64(r.Range().OverlapLength(window))*r.Value
  }
  return sum/float64(window.Length())
}

// Mean signal of a track within a window. The query is restricted to the
// chromosome, the window length is not.
func trackWindowMean(track TrackReader, seqname string, length int, window Range) (float64, error) {
  from := iMax(window.From, 0)
  to   := iMin(window.To, length)
  if from >= to {
    return 0.0, nil
  }
  intervals, err := track.Intervals(seqname, from, to)
  if err != nil {
    return 0.0, err
  }
  return WindowMean(intervals, window), nil
}

/* -------------------------------------------------------------------------- */

type ScoreRequest struct {
  Genome     string
  // empty lists select everything
  Biosources []string
  Factors    []string
  Seqnames   []string
}

type Scorer struct {
  Config ScoreConfig
  Store  IndexStore
}

func NewScorer(config ScoreConfig, store IndexStore) *Scorer {
  return &Scorer{config, store}
}

// Score all peaks of the requested biosources, transcription factors and
// chromosomes. Biosources with missing or unreadable indices and tracks that
// cannot be opened are skipped. ErrNothingToScore is returned if no sample was computed.
func (s *Scorer) Run(request ScoreRequest) (ScoreResult, error) {
  if s.Config.Width < 1 {
    return nil, fmt.Errorf("invalid window width `%d'", s.Config.Width)
  }
  biosources := request.Biosources
  if len(biosources) == 0 {
    dirs, err := listDir(filepath.Join(s.Store.Directory, request.Genome, ChipSeq.String()), false)
    if err != nil {
      return nil, err
    }
    for _, name := range dirs {
      if filepath.Ext(name) == ".json" {
        biosources = append(biosources, strings.TrimSuffix(name, ".json"))
      }
    }
    sort.Strings(biosources)
  }
  threads := iMax(s.Config.Threads, 1)
  pool    := threadpool.New(threads, 100*threads)
  p       := progress.New(len(biosources), 100, "scoring", s.Config.Progress)
  results := make([]map[string]map[string][]ScoreSample, len(biosources))

  if err := pool.RangeJob(0, len(biosources), func(i int, pool threadpool.ThreadPool, erf func() error) error {
    defer p.Increment()
    peaks, acc, filename, err := s.loadIndices(request.Genome, biosources[i])
    if err != nil {
      if errors.Is(err, os.ErrNotExist) {
        Log.WithField("biosource", biosources[i]).Warn("no data for biosource")
      } else {
        NewItemError(ReadFailure, filename, err).log("score")
      }
      return nil
    }
    results[i] = s.ScoreBiosource(peaks, acc, request.Factors, request.Seqnames)
    return nil
  }); err != nil {
    return nil, err
  }
  result := ScoreResult{}
  for i, r := range results {
    if len(r) > 0 {
      result[biosources[i]] = r
    }
  }
  if result.Len() == 0 {
    return result, ErrNothingToScore
  }
  Log.WithField("genome", request.Genome).Infof("computed %d score samples", result.Len())
  return result, nil
}

// Load both indices of a biosource. On failure the name of the offending
// index file is returned.
func (s *Scorer) loadIndices(genome, biosource string) (PeakIndex, AccessibilityIndex, string, error) {
  peaks, err := s.Store.LoadPeakIndex(genome, biosource)
  if err != nil {
    return nil, nil, s.Store.PeakIndexFile(genome, biosource), err
  }
  acc, err := s.Store.LoadAccessibilityIndex(genome, biosource)
  if err != nil {
    return nil, nil, s.Store.AccessibilityIndexFile(genome, biosource), err
  }
  return peaks, acc, "", nil
}

// Open tracks on demand and keep them open until close is called. Files that
// fail to open are remembered and not retried.
type trackCache struct {
  readers map[string]TrackReader
  failed  map[string]bool
}

func newTrackCache() *trackCache {
  return &trackCache{readers: map[string]TrackReader{}, failed: map[string]bool{}}
}

func (c *trackCache) get(filename string) (TrackReader, bool) {
  if r, ok := c.readers[filename]; ok {
    return r, true
  }
  if c.failed[filename] {
    return nil, false
  }
  r, err := OpenTrack(filename, DetectTrackFormat(filename))
  if err != nil {
    kind := ReadFailure
    if !fileExists(filename) {
      kind = MissingInput
    }
    NewItemError(kind, filename, err).log("score")
    c.failed[filename] = true
    return nil, false
  }
  c.readers[filename] = r
  return r, true
}

func (c *trackCache) close() {
  for _, r := range c.readers {
    r.Close()
  }
}

// Score all peaks of one biosource. Transcription factors without samples are
// pruned from the result.
func (s *Scorer) ScoreBiosource(peaks PeakIndex, acc AccessibilityIndex, factors, seqnames []string) map[string]map[string][]ScoreSample {
  tracks := newTrackCache()
  defer tracks.close()

  result := map[string]map[string][]ScoreSample{}
  for _, tf := range peaks.Factors() {
    if !matchAny(factors, tf) {
      continue
    }
    buckets := map[string][]ScoreSample{}
    seen    := map[string]map[ScoreSample]bool{}
    for _, filename := range peaks.Tracks(tf) {
      binding, ok := tracks.get(filename)
      if !ok {
        continue
      }
      chromPeaks := peaks[tf][filename]
      for _, seqname := range chromPeaks.Seqnames() {
        if !matchAny(seqnames, seqname) {
          continue
        }
        accFilename, ok := acc[seqname]
        if !ok {
          continue
        }
        accessibility, ok := tracks.get(accFilename)
        if !ok {
          continue
        }
        samples, err := s.scoreChromosome(binding, accessibility, seqname, chromPeaks[seqname])
        if err != nil {
          NewItemError(ReadFailure, filename, err).log("score")
          continue
        }
        if seen[seqname] == nil {
          seen[seqname] = map[ScoreSample]bool{}
        }
        for _, sample := range samples {
          if !seen[seqname][sample] {
            seen[seqname][sample] = true
            buckets[seqname] = append(buckets[seqname], sample)
          }
        }
      }
    }
    if len(buckets) > 0 {
      result[tf] = buckets
    }
    Log.WithFields(logrus.Fields{"tf": tf, "chromosomes": len(buckets)}).Debug("transcription factor done")
  }
  return result
}

// Peaks on chromosomes missing in one of the tracks yield no samples.
func (s *Scorer) scoreChromosome(binding, accessibility TrackReader, seqname string, peaks []PeakRecord) ([]ScoreSample, error) {
  n1, err1 := binding      .Genome().SeqLength(seqname)
  n2, err2 := accessibility.Genome().SeqLength(seqname)
  if err1 != nil || err2 != nil {
    return nil, nil
  }
  samples := []ScoreSample{}
  for _, peak := range peaks {
    window := peak.Window(s.Config.Width)
    bindMean, err := trackWindowMean(binding, seqname, n1, window)
    if err != nil {
      return nil, err
    }
    accMean, err := trackWindowMean(accessibility, seqname, n2, window)
    if err != nil {
      return nil, err
    }
    samples = append(samples, ScoreSample{
      WindowStart      : window.From,
      WindowEnd        : window.To,
      AccessibilityMean: accMean,
      BindingMean      : bindMean })
  }
  return samples, nil
}
