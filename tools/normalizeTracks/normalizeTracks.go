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
import   "fmt"
import   "log"
import   "os"
import   "strings"

import   "github.com/pborman/getopt"

import . "github.com/tfanalyzer/tfanalyzer"

/* -------------------------------------------------------------------------- */

type Config struct {
  Verbose     int
  Genomes     []string
  Biosources  []string
  Factors     []string
  Chromosomes []string
  Format      TrackFormat
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

func normalizeTracks(config Config, normalizeConfig NormalizeConfig, filenameRegistry string) {
  reg, err := ReadRegistry(filenameRegistry)
  if err != nil {
    log.Fatal(err)
  }
  records := reg.SelectRows(config.Genomes, config.Biosources, config.Factors, config.Chromosomes, config.Format)
  PrintStderr(config, 1, "Normalizing %d files\n", len(records))

  summary, err := NewNormalizer(normalizeConfig).Run(records)
  for _, e := range summary.Excluded {
    PrintStderr(config, 1, "Excluded: %v\n", e)
  }
  if errors.Is(err, ErrDegenerateNormalization) {
    log.Fatalf("normalization failed: %v", err)
  }
  if err != nil {
    log.Fatal(err)
  }
  fmt.Println(summary)
}

/* -------------------------------------------------------------------------- */

func main() {
  options := getopt.New()
  options.SetProgram(fmt.Sprintf("%s", os.Args[0]))

  config          := Config{}
  normalizeConfig := DefaultNormalizeConfig()

  optGenomes     := options. StringLong("genomes",     0 , "", "comma separated list of genomes")
  optBiosources  := options. StringLong("biosources",  0 , "", "comma separated list of biosources")
  optFactors     := options. StringLong("tfs",         0 , "", "comma separated list of transcription factors")
  optChromosomes := options. StringLong("chromosomes", 0 , "", "comma separated list of chromosomes")
  optFormat      := options. StringLong("format",      0 , "bigwig", "track format of selected files [bigwig (default), bedgraph, any]")
  optChunkSize   := options.    IntLong("chunk-size",  0 , normalizeConfig.ChunkSize, "number of positions read at once")
  optThreads     := options.    IntLong("threads",     0 , normalizeConfig.Threads, "number of threads")
  optHelp        := options.   BoolLong("help",       'h',     "print help")
  optVerbose     := options.CounterLong("verbose",    'v',     "be verbose")

  options.SetParameters("<linking_table.csv>")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }
  if len(options.Args()) != 1 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  config.Verbose     = *optVerbose
  config.Genomes     = splitList(*optGenomes)
  config.Biosources  = splitList(*optBiosources)
  config.Factors     = splitList(*optFactors)
  config.Chromosomes = splitList(*optChromosomes)
  if *optFormat != "any" {
    if format, err := ParseTrackFormat(*optFormat); err != nil {
      log.Fatal(err)
    } else {
      config.Format = format
    }
  }
  Log.SetLevel(LogLevel(config.Verbose))
  normalizeConfig.ChunkSize = *optChunkSize
  normalizeConfig.Threads   = *optThreads
  if config.Verbose > 0 {
    normalizeConfig.Progress = os.Stderr
  }
  normalizeTracks(config, normalizeConfig, options.Args()[0])
}
