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

import   "testing"

/* -------------------------------------------------------------------------- */

func TestRange1(t *testing.T) {
  r := NewRange(10, 20)

  if r.OverlapLength(NewRange( 0,  5)) != 0 ||
     r.OverlapLength(NewRange( 0, 10)) != 0 ||
     r.OverlapLength(NewRange( 5, 15)) != 5 ||
     r.OverlapLength(NewRange(12, 14)) != 2 ||
     r.OverlapLength(NewRange( 0, 30)) != 10 {
    t.Error("TestRange1 failed!")
  }
  if r.Overlaps(NewRange(20, 30)) || !r.Overlaps(NewRange(19, 30)) {
    t.Error("TestRange1 failed!")
  }
  if w := NewWindow(110, 5); w.From != 105 || w.To != 115 {
    t.Error("TestRange1 failed!")
  }
}
