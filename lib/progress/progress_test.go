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

package progress

/* -------------------------------------------------------------------------- */

import "bytes"
import "strings"
import "sync"
import "testing"

/* -------------------------------------------------------------------------- */

func TestProgress1(t *testing.T) {
  var buffer bytes.Buffer

  p  := New(10, 10, "normalize", &buffer)
  wg := sync.WaitGroup{}
  for i := 0; i < 10; i++ {
    wg.Add(1)
    go func() {
      defer wg.Done()
      p.Increment()
    }()
  }
  wg.Wait()

  if p.Count() != 10 {
    t.Error("TestProgress1 failed!")
  }
  if !strings.HasSuffix(buffer.String(), "100.00% (10/10)\n") {
    t.Error("TestProgress1 failed!")
  }
  if !strings.Contains(buffer.String(), "normalize |") {
    t.Error("TestProgress1 failed!")
  }
}

func TestProgress2(t *testing.T) {
  // no writer, no output
  p := New(3, 1, "", nil)
  p.Increment()
  if p.Count() != 1 {
    t.Error("TestProgress2 failed!")
  }
}
