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

func mergeTracks(config Config, mergeConfig MergeConfig, filenameRegistry string) {
  PrintStderr(config, 1, "Reading registry `%s'... ", filenameRegistry)
  reg, err := ReadRegistry(filenameRegistry)
  if err != nil {
    PrintStderr(config, 1, "failed\n")
    log.Fatal(err)
  } else {
    PrintStderr(config, 1, "done\n")
  }
  summary, err := NewMerger(mergeConfig).Run(reg)
  if err != nil {
    log.Fatal(err)
  }
  for _, e := range summary.Failed {
    PrintStderr(config, 1, "Failed: %v\n", e)
  }
  fmt.Println(summary)
}

/* -------------------------------------------------------------------------- */

func main() {
  options := getopt.New()
  options.SetProgram(fmt.Sprintf("%s", os.Args[0]))

  config      := Config{}
  mergeConfig := DefaultMergeConfig()

  optChromSizes    := options. StringLong("chrom-sizes",     0 , "", "comma separated list of chrom.sizes files")
  optChromSizesDir := options. StringLong("chrom-sizes-dir", 0 , "", "directory for chrom.sizes files fetched from UCSC")
  optFormats       := options. StringLong("formats",         0 , "bigwig", "comma separated list of allowed output formats")
  optConvertTool   := options. StringLong("convert-tool",    0 , mergeConfig.Tools.ConvertTool, "bedGraph to bigWig conversion program")
  optMergeTool     := options. StringLong("merge-tool",      0 , mergeConfig.Tools.MergeTool, "bigWig merge program")
  optHelp          := options.   BoolLong("help",           'h',     "print help")
  optVerbose       := options.CounterLong("verbose",        'v',     "be verbose")

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
  config.Verbose = *optVerbose
  Log.SetLevel(LogLevel(config.Verbose))
  if config.Verbose > 0 {
    mergeConfig.Progress = os.Stderr
  }
  mergeConfig.ChromSizes         = NewChromSizes(splitList(*optChromSizes), *optChromSizesDir)
  mergeConfig.AllowedFormats     = splitList(*optFormats)
  mergeConfig.Tools.ConvertTool  = *optConvertTool
  mergeConfig.Tools.MergeTool    = *optMergeTool

  mergeTracks(config, mergeConfig, options.Args()[0])
}
