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

import "fmt"
import "io"
import "os"
import "path/filepath"
import "strings"

import "github.com/jinzhu/copier"
import "github.com/sirupsen/logrus"

import "github.com/tfanalyzer/tfanalyzer/lib/progress"

/* -------------------------------------------------------------------------- */

type MergeConfig struct {
  Tools          ExternalTools
  ChromSizes     *ChromSizes
  // output formats accepted downstream, e.g. {"bigwig"}
  AllowedFormats []string
  // progress output, nil to disable
  Progress       io.Writer
}

func DefaultMergeConfig() MergeConfig {
  return MergeConfig{
    Tools         : DefaultExternalTools(),
    ChromSizes    : NewChromSizes(nil, ""),
    AllowedFormats: []string{"bigwig"} }
}

// The merge tool produces bedGraph files. They are converted to bigWig if
// bedGraph is not an allowed format but bigWig is.
func (config MergeConfig) ConvertMerged() bool {
  allowed := map[string]bool{}
  for _, f := range config.AllowedFormats {
    allowed[strings.ToLower(f)] = true
  }
  return !allowed["bedgraph"] && (allowed["bigwig"] || allowed["bw"])
}

/* -------------------------------------------------------------------------- */

// Forward and reverse strand tracks of the same sample.
type TrackPair [2]TrackRecord

func (pair TrackPair) String() string {
  return fmt.Sprintf("[%s, %s]", pair[0].FilePath, pair[1].FilePath)
}

// ATAC-seq tracks with a forward or reverse strand role.
func MergeCandidates(reg *Registry) []TrackRecord {
  return reg.Filter(func(r TrackRecord) bool {
    return r.Technique == AtacSeq && r.StrandRole() != StrandNone
  })
}

func samePairGroup(a, b TrackRecord, useChromosome bool) bool {
  if a.Genome != b.Genome || a.Biosource != b.Biosource {
    return false
  }
  return !useChromosome || a.Chromosome == b.Chromosome
}

// Pair tracks in a single pass. Two records pair if they belong to the same
// genome, biosource and chromosome and the identifier of the first record
// occurs in the path of the second. Each record is used at most once and the
// first match in scan order wins.
func FindPairs(records []TrackRecord, useChromosome bool) []TrackPair {
  pairs := []TrackPair{}
  used  := make([]bool, len(records))
  for i := 0; i < len(records); i++ {
    if used[i] {
      continue
    }
    id := baseIdentifier(records[i].FilePath)
    for j := i+1; j < len(records); j++ {
      if used[j] || !samePairGroup(records[i], records[j], useChromosome) {
        continue
      }
      if strings.Contains(records[j].FilePath, id) {
        pairs   = append(pairs, TrackPair{records[i], records[j]})
        used[i] = true
        used[j] = true
        break
      }
    }
  }
  checkPairGroups(records, useChromosome)
  return pairs
}

// Warn about three or more tracks sharing an identifier, which are paired in
// scan order without further disambiguation.
func checkPairGroups(records []TrackRecord, useChromosome bool) {
  type key struct {
    genome, biosource, chromosome, id string
  }
  groups := map[key][]string{}
  order  := []key{}
  for _, r := range records {
    k := key{r.Genome, r.Biosource, "", baseIdentifier(r.FilePath)}
    if useChromosome {
      k.chromosome = r.Chromosome
    }
    if _, ok := groups[k]; !ok {
      order = append(order, k)
    }
    groups[k] = append(groups[k], r.FilePath)
  }
  for _, k := range order {
    if n := len(groups[k]); n > 2 {
      Log.WithFields(logrus.Fields{
        "genome"   : k.genome,
        "biosource": k.biosource,
        "id"       : k.id }).Warnf("%d tracks share the same identifier, pairing in scan order: %s",
        n, strings.Join(groups[k], ", "))
    }
  }
}

// Name of the merged track of a pair: the first file name up to its first
// underscore followed by `_merged.bedGraph'.
func MergedTrackName(filename string) string {
  dir  := filepath.Dir(filename)
  base := strings.SplitN(filepath.Base(filename), "_", 2)[0]
  return filepath.Join(dir, base+"_merged.bedGraph")
}

/* -------------------------------------------------------------------------- */

type MergeSummary struct {
  Pairs   int
  // registry paths of new merged tracks
  Merged  []string
  // pairs already merged by a previous run
  Skipped []string
  Failed  []*ItemError
}

func (s MergeSummary) String() string {
  return fmt.Sprintf("%d pairs: %d merged, %d already merged, %d failed",
    s.Pairs, len(s.Merged), len(s.Skipped), len(s.Failed))
}

type Merger struct {
  Config MergeConfig
}

func NewMerger(config MergeConfig) *Merger {
  return &Merger{config}
}

// Merge all forward/reverse pairs of the registry. Failures of single pairs
// are recorded in the summary. Pairs that map to the same merged track name
// all fail and their sources are kept. A successfully merged pair is appended to the
// registry immediately, so that it persists if a later pair fails.
func (m *Merger) Run(reg *Registry) (MergeSummary, error) {
  summary := MergeSummary{}
  pairs   := FindPairs(MergeCandidates(reg), reg.HasChromosome())
  summary.Pairs = len(pairs)

  Log.Infof("found %d pairs for merging", len(pairs))

  // pairs sharing a merged track name cannot be told apart
  claims := map[string]int{}
  for _, pair := range pairs {
    claims[m.finalTarget(pair)]++
  }
  p := progress.New(len(pairs), 100, "merging", m.Config.Progress)
  for _, pair := range pairs {
    var target string
    var merged bool
    var err    error
    if t := m.finalTarget(pair); claims[t] > 1 {
      err = NewItemError(ConversionFailure, pair[0].FilePath,
        fmt.Errorf("merged track `%s' is shared by %d pairs", t, claims[t]))
    } else {
      target, merged, err = m.mergePair(reg, pair)
    }
    p.Increment()
    if err != nil {
      e, ok := err.(*ItemError)
      if !ok {
        // registry could not be written
        return summary, err
      }
      e.log("merge")
      summary.Failed = append(summary.Failed, e)
      continue
    }
    if merged {
      summary.Merged = append(summary.Merged, target)
    } else {
      summary.Skipped = append(summary.Skipped, target)
    }
  }
  Log.Info(summary.String())
  return summary, nil
}

func (m *Merger) finalTarget(pair TrackPair) string {
  target := MergedTrackName(pair[0].FilePath)
  if m.Config.ConvertMerged() {
    target = replaceExt(target, ".bw")
  }
  return target
}

// Returns the registry path of the merged track and whether a new track was
// merged. Item errors are scoped to the pair, all other errors concern the
// registry.
func (m *Merger) mergePair(reg *Registry, pair TrackPair) (string, bool, error) {
  target := m.finalTarget(pair)

  if reg.Contains(target) {
    Log.WithField("file", target).Debug("pair already merged")
    return target, false, nil
  }
  // merged by an earlier run that did not finish
  if fileExists(target) {
    Log.WithField("file", target).Debug("merged track exists, registering it")
    if merged := MergedTrackName(pair[0].FilePath); merged != target {
      m.cleanup(merged)
    }
    for _, r := range pair {
      if r.Format() == FormatBedGraph {
        m.cleanup(replaceExt(r.FilePath, ".bw"))
      }
      m.cleanup(r.FilePath)
    }
    return target, true, m.register(reg, pair, target)
  }
  intermediates := []string{}
  sources       := [2]string{}
  for i, r := range pair {
    if !fileExists(r.FilePath) {
      return "", false, NewItemError(MissingInput, r.FilePath, fmt.Errorf("file does not exist"))
    }
    switch r.Format() {
    case FormatBigWig:
      sources[i] = r.FilePath
    case FormatBedGraph:
      filename, err := m.convert(r.Genome, r.FilePath)
      if err != nil {
        m.cleanup(intermediates...)
        return "", false, err
      }
      sources[i]    = filename
      intermediates = append(intermediates, filename)
    default:
      m.cleanup(intermediates...)
      return "", false, NewItemError(FormatMismatch, r.FilePath, fmt.Errorf("track is neither bigWig nor bedGraph"))
    }
  }
  merged := MergedTrackName(pair[0].FilePath)
  Log.WithFields(logrus.Fields{"forward": sources[0], "reverse": sources[1]}).Debug("merging pair")
  if err := m.Config.Tools.Merge(sources[0], sources[1], merged); err != nil {
    m.cleanup(intermediates...)
    return "", false, NewItemError(ConversionFailure, pair[0].FilePath, err)
  }
  if merged != target {
    filename, err := m.convert(pair[0].Genome, merged)
    if err != nil {
      m.cleanup(append(intermediates, merged)...)
      return "", false, err
    }
    intermediates = append(intermediates, merged)
    target        = filename
  }
  m.cleanup(append(intermediates, pair[0].FilePath, pair[1].FilePath)...)

  return target, true, m.register(reg, pair, target)
}

func (m *Merger) convert(genome, filename string) (string, error) {
  if m.Config.ChromSizes == nil {
    return "", NewItemError(MissingInput, filename, fmt.Errorf("no chromosome sizes available"))
  }
  chromSizes, err := m.Config.ChromSizes.Lookup(genome)
  if err != nil {
    return "", NewItemError(MissingInput, filename, err)
  }
  existed := fileExists(replaceExt(filename, ".bw"))
  c := m.Config.Tools.Convert(filename, chromSizes)
  if c.State != Converted {
    // drop partial output of the converter
    if !existed {
      m.cleanup(c.Target)
    }
    return "", NewItemError(ConversionFailure, filename, c.Err)
  }
  return c.Target, nil
}

func (m *Merger) cleanup(filenames ...string) {
  for _, filename := range filenames {
    if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
      Log.WithField("file", filename).Warnf("removing file failed: %v", err)
    }
  }
}

// Append a copy of the first record of the pair pointing to the merged
// track.
func (m *Merger) register(reg *Registry, pair TrackPair, target string) error {
  row := TrackRecord{}
  if err := copier.Copy(&row, &pair[0]); err != nil {
    return err
  }
  row.SetPath(target)
  return reg.Append(row)
}
