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
import "io"
import "os"
import "path/filepath"
import "time"

import "github.com/sirupsen/logrus"

/* -------------------------------------------------------------------------- */

var Log = newLogger()

func newLogger() *logrus.Logger {
  log := logrus.New()
  log.SetOutput(os.Stderr)
  log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
  log.SetLevel(logrus.InfoLevel)
  return log
}

// Map a verbosity counter to a log level.
func LogLevel(verbose int) logrus.Level {
  switch {
  case verbose <= 0:
    return logrus.InfoLevel
  case verbose == 1:
    return logrus.DebugLevel
  }
  return logrus.TraceLevel
}

// Tee log messages to a new time stamped file in <outpath>/logs. The caller
// must close the returned file.
func SetupLogging(outpath string, verbose int) (string, io.Closer, error) {
  Log.SetLevel(LogLevel(verbose))

  dir := filepath.Join(outpath, "logs")
  if err := os.MkdirAll(dir, 0755); err != nil {
    return "", nil, err
  }
  filename := filepath.Join(dir, fmt.Sprintf("%s_tfanalyzer.log", time.Now().Format("02_01_2006_15_04_05")))
  f, err := os.Create(filename)
  if err != nil {
    return "", nil, err
  }
  Log.SetOutput(io.MultiWriter(os.Stderr, f))
  return filename, f, nil
}
