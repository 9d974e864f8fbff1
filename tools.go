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

import "bytes"
import "fmt"
import "os/exec"
import "strings"

/* -------------------------------------------------------------------------- */

// Executes external programs. A non-zero exit status is an error.
type ToolRunner interface {
  Run(name string, args ...string) error
}

type ExecRunner struct{}

func (ExecRunner) Run(name string, args ...string) error {
  var stderr bytes.Buffer
  cmd := exec.Command(name, args...)
  cmd.Stderr = &stderr
  if err := cmd.Run(); err != nil {
    if msg := strings.TrimSpace(stderr.String()); msg != "" {
      return fmt.Errorf("%s failed: %v: %s", name, err, msg)
    }
    return fmt.Errorf("%s failed: %v", name, err)
  }
  return nil
}

/* -------------------------------------------------------------------------- */

// External programs for converting bedGraph files to bigWig and for merging
// two bigWig files into a single bedGraph file.
type ExternalTools struct {
  ConvertTool string
  MergeTool   string
  Runner      ToolRunner
}

func DefaultExternalTools() ExternalTools {
  return ExternalTools{
    ConvertTool: "bedGraphToBigWig",
    MergeTool  : "bigWigMerge",
    Runner     : ExecRunner{} }
}

func (tools ExternalTools) runner() ToolRunner {
  if tools.Runner == nil {
    return ExecRunner{}
  }
  return tools.Runner
}

// Merge two bigWig files into a bedGraph file.
func (tools ExternalTools) Merge(filename1, filename2, target string) error {
  if err := tools.runner().Run(tools.MergeTool, filename1, filename2, target); err != nil {
    return err
  }
  if !fileExists(target) {
    return fmt.Errorf("%s did not create `%s'", tools.MergeTool, target)
  }
  return nil
}

/* conversion of bedGraph files to bigWig
 * -------------------------------------------------------------------------- */

type ConversionState int

const (
  NotConverted ConversionState = iota
  SortRequired
  Converted
  ConversionFailed
)

func (s ConversionState) String() string {
  switch s {
  case NotConverted:
    return "not converted"
  case SortRequired:
    return "sort required"
  case Converted:
    return "converted"
  case ConversionFailed:
    return "failed"
  }
  return "unknown"
}

// Conversion of a single bedGraph file. A failed conversion is retried once
// after sorting the source file.
type Conversion struct {
  Source     string
  Target     string
  ChromSizes string
  State      ConversionState
  Err        error
}

func NewConversion(source, chromSizes string) *Conversion {
  return &Conversion{
    Source    : source,
    Target    : replaceExt(source, ".bw"),
    ChromSizes: chromSizes }
}

func (c *Conversion) Done() bool {
  return c.State == Converted || c.State == ConversionFailed
}

func (c *Conversion) convert(tools ExternalTools) error {
  if err := tools.runner().Run(tools.ConvertTool, c.Source, c.ChromSizes, c.Target); err != nil {
    return err
  }
  if !fileExists(c.Target) {
    return fmt.Errorf("%s did not create `%s'", tools.ConvertTool, c.Target)
  }
  return nil
}

// Advance the conversion by a single state.
func (c *Conversion) Step(tools ExternalTools) {
  switch c.State {
  case NotConverted:
    if !fileExists(c.Source) {
      c.State, c.Err = ConversionFailed, fmt.Errorf("file does not exist")
    } else if err := c.convert(tools); err != nil {
      Log.WithField("file", c.Source).Debugf("conversion failed, sorting file: %v", err)
      c.State, c.Err = SortRequired, err
    } else {
      c.State, c.Err = Converted, nil
    }
  case SortRequired:
    if err := SortBedGraph(c.Source); err != nil {
      c.State, c.Err = ConversionFailed, err
    } else if err := c.convert(tools); err != nil {
      c.State, c.Err = ConversionFailed, err
    } else {
      c.State, c.Err = Converted, nil
    }
  }
}

// Convert a bedGraph file to bigWig using the given chromosome sizes table.
// The returned conversion is in a final state.
func (tools ExternalTools) Convert(source, chromSizes string) *Conversion {
  c := NewConversion(source, chromSizes)
  for !c.Done() {
    c.Step(tools)
  }
  return c
}
