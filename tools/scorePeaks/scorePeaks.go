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
  Verbose int
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

func scorePeaks(config Config, scoreConfig ScoreConfig, indexDir, outputDir string, request ScoreRequest) {
  result, err := NewScorer(scoreConfig, IndexStore{Directory: indexDir}).Run(request)
  if errors.Is(err, ErrNothingToScore) {
    log.Fatalf("no score samples for genome `%s'", request.Genome)
  }
  if err != nil {
    log.Fatal(err)
  }
  PrintStderr(config, 1, "Exporting %d samples to `%s'... ", result.Len(), outputDir)
  filenames, err := ExportScores(outputDir, result)
  if err != nil {
    PrintStderr(config, 1, "failed\n")
    log.Fatal(err)
  } else {
    PrintStderr(config, 1, "done\n")
  }
  for _, filename := range filenames {
    fmt.Println(filename)
  }
}

/* -------------------------------------------------------------------------- */

func main() {
  options := getopt.New()
  options.SetProgram(fmt.Sprintf("%s", os.Args[0]))

  config      := Config{}
  scoreConfig := DefaultScoreConfig()

  optBiosources  := options. StringLong("biosources",  0 , "", "comma separated list of biosources")
  optFactors     := options. StringLong("tfs",         0 , "", "comma separated list of transcription factors")
  optChromosomes := options. StringLong("chromosomes", 0 , "", "comma separated list of chromosomes")
  optWidth       := options.    IntLong("width",       0 , scoreConfig.Width, "half-width of windows around peak summits")
  optThreads     := options.    IntLong("threads",     0 , scoreConfig.Threads, "number of threads")
  optHelp        := options.   BoolLong("help",       'h',     "print help")
  optVerbose     := options.CounterLong("verbose",    'v',     "be verbose")

  options.SetParameters("<index-dir> <genome> <output-dir>")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }
  if len(options.Args()) != 3 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  config.Verbose = *optVerbose
  Log.SetLevel(LogLevel(config.Verbose))

  scoreConfig.Width   = *optWidth
  scoreConfig.Threads = *optThreads
  if config.Verbose > 0 {
    scoreConfig.Progress = os.Stderr
  }
  request := ScoreRequest{
    Genome    : options.Args()[1],
    Biosources: splitList(*optBiosources),
    Factors   : splitList(*optFactors),
    Seqnames  : splitList(*optChromosomes) }

  scorePeaks(config, scoreConfig, options.Args()[0], options.Args()[2], request)
}
