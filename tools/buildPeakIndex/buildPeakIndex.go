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

func buildPeakIndex(config Config, dataDir, indexDir, filenameRegistry string) {
  reg, err := ReadRegistry(filenameRegistry)
  if err != nil {
    log.Fatal(err)
  }
  builder := NewIndexBuilder(dataDir)
  if indexDir != "" {
    builder.Store = IndexStore{Directory: indexDir}
  }
  PrintStderr(config, 1, "Building indices in `%s'... ", builder.Store.Directory)
  if err := builder.Build(reg); err != nil {
    PrintStderr(config, 1, "failed\n")
    log.Fatal(err)
  } else {
    PrintStderr(config, 1, "done\n")
  }
}

/* -------------------------------------------------------------------------- */

func main() {
  options := getopt.New()
  options.SetProgram(fmt.Sprintf("%s", os.Args[0]))

  config := Config{}

  optRegistry := options. StringLong("registry",  0 , "", "registry file [default: <data-dir>/linking_table.csv]")
  optIndexDir := options. StringLong("index-dir", 0 , "", "index directory [default: <data-dir>/index]")
  optHelp     := options.   BoolLong("help",     'h',     "print help")
  optVerbose  := options.CounterLong("verbose",  'v',     "be verbose")

  options.SetParameters("<data-dir>")
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

  dataDir  := options.Args()[0]
  registry := *optRegistry
  if registry == "" {
    registry = filepath.Join(dataDir, "linking_table.csv")
  }
  buildPeakIndex(config, dataDir, *optIndexDir, registry)
}
