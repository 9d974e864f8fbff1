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
import "strconv"
import "strings"

/* -------------------------------------------------------------------------- */

// Column separator of flat signal files.
const FlatSeparator = "\t"

// Index of the value column in plain bedGraph files.
const bedGraphValueColumn = 3

/* -------------------------------------------------------------------------- */

// Location of the signal value within the rows of a flat file.
type ValueSchema struct {
  Columns []string
  Index   int
}

// Resolve the value column from the comma separated column names of the
// registry format column. The column SIGNAL_VALUE takes precedence over
// VALUE. Plain bedGraph files without column names use the fourth column.
func NewValueSchema(columns string, format TrackFormat) (ValueSchema, error) {
  names := []string{}
  if s := strings.TrimSpace(columns); s != "" {
    names = strings.Split(s, ",")
    for i := range names {
      names[i] = strings.TrimSpace(names[i])
    }
  }
  for _, name := range []string{"SIGNAL_VALUE", "VALUE"} {
    for i, c := range names {
      if c == name {
        return ValueSchema{Columns: names, Index: i}, nil
      }
    }
  }
  if _, err := ParseTrackFormat(columns); err == nil || len(names) == 0 {
    if format == FormatBedGraph {
      return ValueSchema{Columns: names, Index: bedGraphValueColumn}, nil
    }
  }
  return ValueSchema{}, fmt.Errorf("no value column in `%s'", columns)
}

func (s ValueSchema) field(fields []string) (string, error) {
  if s.Index >= len(fields) {
    return "", fmt.Errorf("row has %d columns, value column is %d", len(fields), s.Index+1)
  }
  return strings.TrimSpace(fields[s.Index]), nil
}

// A row is a header if its value field is not numeric.
func (s ValueSchema) IsHeader(fields []string) bool {
  str, err := s.field(fields)
  return err != nil || !isFloat(str)
}

func (s ValueSchema) Value(fields []string) (float64, error) {
  str, err := s.field(fields)
  if err != nil {
    return 0, err
  }
  return strconv.ParseFloat(str, 64)
}

// Replace the value field of a row.
func (s ValueSchema) Replace(fields []string, value float64) ([]string, error) {
  if _, err := s.field(fields); err != nil {
    return nil, err
  }
  result := append([]string{}, fields...)
  result[s.Index] = formatValue(value)
  return result, nil
}

func splitFlatLine(line string) []string {
  return strings.Split(strings.TrimRight(line, "\r\n"), FlatSeparator)
}
