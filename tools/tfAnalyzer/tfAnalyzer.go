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

import   "fmt"
import   "log"
import   "os"
import   "path/filepath"
import   "strings"

import   "github.com/pborman/getopt"

import . "github.com/tfanalyzer/tfanalyzer"

/* -------------------------------------------------------------------------- */

type Config struct {
  Verbose     int
  Genome      string
  Biosources  []string
  Factors     []string
  Chromosomes []string
  SkipMerge   bool
  SkipIndex   bool
  SkipNorm    bool
}

/* -------------------------------------------------------------------------- */

func PrintStderr(config Config, level int, format string, args ...interface{}) {
  if config.Verbose >= level {
    fmt.Fprintf(os.Stderr, format, args...)
  }
}

func splitList(str string) []string {
  r := []string{}
  for _, s := range strings.Split(str, ",") {
    if s = strings.TrimSpace(s); s != "" {
      r = append(r, s)
    }
  }
  return r
}

/* -------------------------------------------------------------------------- */

func listData(filenameRegistry string) {
  reg, err := ReadRegistry(filenameRegistry)
  if err != nil {
    log.Fatal(err)
  }
  for _, g := range reg.Summary() {
    fmt.Printf("%s\t%s\t%s\t%s\n", g.Genome, g.Biosource, g.Mark, strings.Join(g.Chromosomes, ","))
  }
}

/* -------------------------------------------------------------------------- */

// Run all stages of the pipeline. Per-file failures are logged by the
// stages, the returned error is fatal for the whole run.
func tfAnalyzer(config Config, mergeConfig MergeConfig, normalizeConfig NormalizeConfig, scoreConfig ScoreConfig, outputDir string) error {
  dataDir          := filepath.Join(outputDir, "data")
  filenameRegistry := filepath.Join(dataDir, "linking_table.csv")

  reg, err := ReadRegistry(filenameRegistry)
  if err != nil {
    return err
  }
  genomes := []string{}
  if config.Genome != "" {
    genomes = append(genomes, config.Genome)
  }
  // merge strand specific accessibility tracks
  if !config.SkipMerge {
    if _, err := NewMerger(mergeConfig).Run(reg); err != nil {
      return err
    }
  }
  builder := NewIndexBuilder(dataDir)
  if !config.SkipIndex {
    if err := builder.Build(reg); err != nil {
      return err
    }
  }
  if !config.SkipNorm {
    records := reg.SelectRows(genomes, config.Biosources, config.Factors, config.Chromosomes, FormatBigWig)
    if _, err := NewNormalizer(normalizeConfig).Run(records); err != nil {
      return err
    }
  }
  request := ScoreRequest{
    Genome    : config.Genome,
    Biosources: config.Biosources,
    Factors   : config.Factors,
    Seqnames  : config.Chromosomes }
  result, err := NewScorer(scoreConfig, builder.Store).Run(request)
  if err != nil {
    return fmt.Errorf("scoring genome `%s' failed: %w", config.Genome, err)
  }
  filenames, err := ExportScores(filepath.Join(outputDir, "scores"), result)
  if err != nil {
    return err
  }
  PrintStderr(config, 1, "Wrote %d score files\n", len(filenames))
  return nil
}

/* -------------------------------------------------------------------------- */

func main() {
  options := getopt.New()
  options.SetProgram(fmt.Sprintf("%s", os.Args[0]))

  config          := Config{}
  mergeConfig     := DefaultMergeConfig()
  normalizeConfig := DefaultNormalizeConfig()
  scoreConfig     := DefaultScoreConfig()

  optGenome      := options. StringLong("genome",          0 , "hg38", "genome assembly")
  optBiosources  := options. StringLong("biosources",      0 , "", "comma separated list of biosources")
  optFactors     := options. StringLong("tfs",             0 , "", "comma separated list of transcription factors")
  optChromosomes := options. StringLong("chromosomes",     0 , "", "comma separated list of chromosomes")
  optChromSizes  := options. StringLong("chrom-sizes",     0 , "", "comma separated list of chrom.sizes files")
  optFormats     := options. StringLong("formats",         0 , "bigwig", "comma separated list of allowed output formats")
  optWidth       := options.    IntLong("width",           0 , scoreConfig.Width, "half-width of windows around peak summits")
  optThreads     := options.    IntLong("threads",         0 , normalizeConfig.Threads, "number of threads")
  optSkipMerge   := options.   BoolLong("skip-merge",      0 ,   "do not merge strand specific tracks")
  optSkipIndex   := options.   BoolLong("skip-index",      0 ,   "do not update peak indices")
  optSkipNorm    := options.   BoolLong("skip-normalize",  0 ,   "do not normalize tracks")
  optList        := options.   BoolLong("list",            0 ,   "list downloaded data and exit")
  optHelp        := options.   BoolLong("help",           'h',   "print help")
  optVerbose     := options.CounterLong("verbose",        'v',   "be verbose")

  options.SetParameters("<output-dir>")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }
  if len(options.Args()) != 1 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  outputDir := options.Args()[0]

  if *optList {
    listData(filepath.Join(outputDir, "data", "linking_table.csv"))
    return
  }
  config.Verbose     = *optVerbose
  config.Genome      = *optGenome
  config.Biosources  = splitList(*optBiosources)
  config.Factors     = splitList(*optFactors)
  config.Chromosomes = splitList(*optChromosomes)
  config.SkipMerge   = *optSkipMerge
  config.SkipIndex   = *optSkipIndex
  config.SkipNorm    = *optSkipNorm

  logfile, closer, err := SetupLogging(outputDir, config.Verbose)
  if err != nil {
    log.Fatal(err)
  }
  defer closer.Close()
  PrintStderr(config, 1, "Logging to `%s'\n", logfile)

  mergeConfig.ChromSizes     = NewChromSizes(splitList(*optChromSizes), filepath.Join(outputDir, "chrom_sizes"))
  mergeConfig.AllowedFormats = splitList(*optFormats)
  normalizeConfig.Threads    = *optThreads
  scoreConfig.Threads        = *optThreads
  scoreConfig.Width          = *optWidth
  if config.Verbose > 0 {
    mergeConfig.Progress     = os.Stderr
    normalizeConfig.Progress = os.Stderr
    scoreConfig.Progress     = os.Stderr
  }
  if err := tfAnalyzer(config, mergeConfig, normalizeConfig, scoreConfig, outputDir); err != nil {
    closer.Close()
    log.Fatal(err)
  }
}
