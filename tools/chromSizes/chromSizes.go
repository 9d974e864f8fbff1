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

/* -------------------------------------------------------------------------- */

func chromSizes(config Config, outputDir string, assemblies []string) {
  for _, assembly := range assemblies {
    PrintStderr(config, 1, "Importing `%s' from UCSC... ", assembly)
    genome, err := ImportGenomeFromUCSC(assembly)
    if err != nil {
      PrintStderr(config, 1, "failed\n")
      log.Fatal(err)
    } else {
      PrintStderr(config, 1, "done\n")
    }
    filename := filepath.Join(outputDir, assembly+".chrom.sizes")
    if err := genome.Sorted().Export(filename); err != nil {
      log.Fatal(err)
    }
    fmt.Println(filename)
  }
}

/* -------------------------------------------------------------------------- */

func main() {
  options := getopt.New()
  options.SetProgram(fmt.Sprintf("%s", os.Args[0]))

  config := Config{}

  optOutputDir := options. StringLong("output-dir", 0 , ".", "output directory")
  optHelp      := options.   BoolLong("help",     'h',      "print help")
  optVerbose   := options.CounterLong("verbose",  'v',      "be verbose")

  options.SetParameters("<assembly>...")
  options.Parse(os.Args)

  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }
  if len(options.Args()) == 0 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  config.Verbose = *optVerbose
  Log.SetLevel(LogLevel(config.Verbose))

  if err := os.MkdirAll(*optOutputDir, 0755); err != nil {
    log.Fatal(err)
  }
  chromSizes(config, *optOutputDir, options.Args())
}
