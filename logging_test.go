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

import   "os"
import   "path/filepath"
import   "strings"
import   "testing"

import   "github.com/sirupsen/logrus"

/* -------------------------------------------------------------------------- */

func TestLogging1(t *testing.T) {
  dir    := t.TempDir()
  output := Log.Out
  level  := Log.GetLevel()
  defer func() {
    Log.SetOutput(output)
    Log.SetLevel(level)
  }()
  filename, closer, err := SetupLogging(dir, 1)
  if err != nil {
    t.Fatal(err)
  }
  if filepath.Dir(filename) != filepath.Join(dir, "logs") || !strings.HasSuffix(filename, "_tfanalyzer.log") {
    t.Error("TestLogging1 failed!")
  }
  Log.Debug("test message")
  closer.Close()

  data, _ := os.ReadFile(filename)
  if !strings.Contains(string(data), "test message") {
    t.Error("TestLogging1 failed!")
  }
  if LogLevel(0) != logrus.InfoLevel || LogLevel(5) != logrus.TraceLevel {
    t.Error("TestLogging1 failed!")
  }
}
