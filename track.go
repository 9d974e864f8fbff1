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

import "fmt"
import "path/filepath"
import "strings"

/* -------------------------------------------------------------------------- */

// Default number of positions read at once when streaming a chromosome.
const DefaultChunkSize = 1000000

/* -------------------------------------------------------------------------- */

type TrackFormat int

const (
  FormatUnknown TrackFormat = iota
  // binary interval track (bigWig)
  FormatBigWig
  // text interval track (bedGraph)
  FormatBedGraph
)

func (f TrackFormat) String() string {
  switch f {
  case FormatBigWig:
    return "bigWig"
  case FormatBedGraph:
    return "bedGraph"
  }
  return "unknown"
}

// Detect the format of a track from its file extension. A trailing
// log-scale cache suffix is ignored.
func DetectTrackFormat(filename string) TrackFormat {
  filename = strings.TrimSuffix(filename, LogScaleSuffix)
  filename = strings.TrimSuffix(strings.TrimSuffix(filename, ".gz"), ".GZ")
  switch strings.ToLower(filepath.Ext(filename)) {
  case ".bw", ".bigwig":
    return FormatBigWig
  case ".bedgraph", ".bg":
    return FormatBedGraph
  }
  return FormatUnknown
}

func ParseTrackFormat(str string) (TrackFormat, error) {
  switch strings.ToLower(str) {
  case "bigwig", "bw":
    return FormatBigWig, nil
  case "bedgraph", "bg":
    return FormatBedGraph, nil
  }
  return FormatUnknown, fmt.Errorf("invalid track format `%s'", str)
}

/* -------------------------------------------------------------------------- */

// A single record of an interval track covering [From, To).
type TrackInterval struct {
  From  int
  To    int
  Value float64
}

func (r TrackInterval) Range() Range {
  return Range{r.From, r.To}
}

type TrackSummary struct {
  BasesCovered uint64
  Min          float64
  Max          float64
  Sum          float64
  SumSquares   float64
}

type TrackReader interface {
  Genome   () Genome
  Intervals(seqname string, from, to int) ([]TrackInterval, error)
  Summary  () (TrackSummary, error)
  Close    () error
}

type TrackWriter interface {
  Write(seqname string, intervals []TrackInterval) error
  Close() error
}

/* -------------------------------------------------------------------------- */

func OpenTrack(filename string, format TrackFormat) (TrackReader, error) {
  switch format {
  case FormatBigWig:
    return OpenBigWig(filename)
  case FormatBedGraph:
    return OpenBedGraph(filename)
  }
  return nil, fmt.Errorf("opening track `%s' failed: unsupported format", filename)
}

// Create a new track. The genome must list all chromosomes that will be
// written.
func CreateTrack(filename string, format TrackFormat, genome Genome) (TrackWriter, error) {
  switch format {
  case FormatBigWig:
    return CreateBigWig(filename, genome, DefaultBigWigParameters())
  case FormatBedGraph:
    return CreateBedGraph(filename)
  }
  return nil, fmt.Errorf("creating track `%s' failed: unsupported format", filename)
}

// Check that a file is consistent with its declared format.
func IsValidTrack(filename string, format TrackFormat) (bool, error) {
  switch format {
  case FormatBigWig:
    return IsBigWigFile(filename)
  case FormatBedGraph:
    return IsBedGraphFile(filename)
  }
  return false, nil
}

/* -------------------------------------------------------------------------- */

// Stream all records of a chromosome in windows of chunkSize positions.
// After a non-empty window the next window starts at the end of its last
// record, so records spanning a window boundary are visited exactly once.
func TrackChunks(reader TrackReader, seqname string, chunkSize int, f func([]TrackInterval) error) error {
  length, err := reader.Genome().SeqLength(seqname)
  if err != nil {
    return err
  }
  if chunkSize <= 0 {
    chunkSize = DefaultChunkSize
  }
  for i := 0; i < length; {
    intervals, err := reader.Intervals(seqname, i, iMin(i+chunkSize, length))
    if err != nil {
      return err
    }
    // drop records already visited in the previous window
    for len(intervals) > 0 && intervals[0].From < i {
      intervals = intervals[1:]
    }
    if len(intervals) == 0 {
      i += chunkSize
      continue
    }
    if err := f(intervals); err != nil {
      return err
    }
    if next := intervals[len(intervals)-1].To; next > i {
      i = next
    } else {
      i += chunkSize
    }
  }
  return nil
}

// Stream all records of all chromosomes of a track.
func TrackScan(reader TrackReader, chunkSize int, f func(seqname string, intervals []TrackInterval) error) error {
  for _, seqname := range reader.Genome().Seqnames {
    if err := TrackChunks(reader, seqname, chunkSize, func(intervals []TrackInterval) error {
      return f(seqname, intervals)
    }); err != nil {
      return err
    }
  }
  return nil
}

// Transform a track record by record into a new track with identical
// interval boundaries.
func TrackMap(reader TrackReader, writer TrackWriter, chunkSize int, g func(float64) float64) error {
  return TrackScan(reader, chunkSize, func(seqname string, intervals []TrackInterval) error {
    result := make([]TrackInterval, len(intervals))
    for i, r := range intervals {
      result[i] = TrackInterval{r.From, r.To, g(r.Value)}
    }
    return writer.Write(seqname, result)
  })
}
