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

import "errors"
import "fmt"

import "github.com/sirupsen/logrus"

/* batch level errors
 * -------------------------------------------------------------------------- */

var ErrMissingRegistry         = errors.New("registry not found")
var ErrDegenerateNormalization = errors.New("global maximum equals global minimum")
var ErrNothingToScore          = errors.New("nothing to score")

/* item level errors
 * -------------------------------------------------------------------------- */

type ErrorKind int

const (
  // a required file does not exist
  MissingInput ErrorKind = iota+1
  // an external conversion or merge tool failed or produced no output
  ConversionFailure
  // a file does not match its declared format
  FormatMismatch
  // a file could not be read, parsed or written
  ReadFailure
)

func (kind ErrorKind) String() string {
  switch kind {
  case MissingInput:
    return "missing input"
  case ConversionFailure:
    return "conversion failure"
  case FormatMismatch:
    return "format mismatch"
  case ReadFailure:
    return "read failure"
  }
  return "unknown"
}

// Failure scoped to a single file of a batch.
type ItemError struct {
  Kind ErrorKind
  Path string
  Err  error
}

func NewItemError(kind ErrorKind, path string, err error) *ItemError {
  return &ItemError{kind, path, err}
}

func (e *ItemError) Error() string {
  return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ItemError) Unwrap() error {
  return e.Err
}

func (e *ItemError) log(stage string) {
  Log.WithFields(logrus.Fields{
    "stage": stage,
    "kind" : e.Kind.String(),
    "file" : e.Path }).Errorf("file excluded: %v", e.Err)
}
