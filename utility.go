/* Copyright (C) 2016 Philipp Benner
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

import "os"
import "path/filepath"
import "strconv"
import "strings"

/* -------------------------------------------------------------------------- */

// Suffix of log-scale cache artifacts.
const LogScaleSuffix = ".ln"
// Suffix of temporary files that replace their original on success.
const TmpSuffix      = ".tmp"

/* -------------------------------------------------------------------------- */

func iMin(a, b int) int {
  if a < b {
    return a
  } else {
    return b
  }
}

func iMax(a, b int) int {
  if a > b {
    return a
  } else {
    return b
  }
}

/* -------------------------------------------------------------------------- */

func fileExists(filename string) bool {
  info, err := os.Stat(filename)
  return err == nil && !info.IsDir()
}

func formatValue(x float64) string {
  return strconv.FormatFloat(x, 'g', -1, 64)
}

func isFloat(str string) bool {
  _, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
  return err == nil
}

// Replace the last extension of a filename, i.e. `a/b.c.bedGraph' becomes
// `a/b.c.bw'.
func replaceExt(filename, ext string) string {
  return strings.TrimSuffix(filename, filepath.Ext(filename)) + ext
}

// Identifier of a file given by its name up to the first dot.
func baseIdentifier(filename string) string {
  return strings.SplitN(filepath.Base(filename), ".", 2)[0]
}

func removeDuplicatesString(s []string) []string {
  m := map[string]bool{}
  r := []string{}

  for _, v := range s {
    if !m[v] {
      m[v] = true
      r    = append(r, v)
    }
  }
  return r
}

func containsString(s []string, x string) bool {
  for _, v := range s {
    if v == x {
      return true
    }
  }
  return false
}
