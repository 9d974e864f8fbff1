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

import   "bufio"
import   "bytes"
import   "database/sql"
import   "fmt"
import   "io"
import   "os"
import   "path/filepath"
import   "sort"
import   "strconv"
import   "strings"

import _ "github.com/go-sql-driver/mysql"
import   "github.com/shenwei356/xopen"

/* -------------------------------------------------------------------------- */

// Structure containing chromosome sizes.
type Genome struct {
  Seqnames []string
  Lengths  []int
}

/* constructor
 * -------------------------------------------------------------------------- */

func NewGenome(seqnames []string, lengths []int) Genome {
  if len(seqnames) != len(lengths) {
    panic("NewGenome(): Invalid parameters!")
  }
  return Genome{seqnames, lengths}
}

/* -------------------------------------------------------------------------- */

// Number of chromosomes in the structure.
func (genome Genome) Length() int {
  return len(genome.Seqnames)
}

// Length of the given chromosome. Returns an error if the chromosome
// is not found.
func (genome Genome) SeqLength(seqname string) (int, error) {
  if i, err := genome.GetIdx(seqname); err != nil {
    return 0, err
  } else {
    return genome.Lengths[i], nil
  }
}

func (genome Genome) GetIdx(seqname string) (int, error) {
  for i, s := range genome.Seqnames {
    if seqname == s {
      return i, nil
    }
  }
  return -1, fmt.Errorf("sequence `%s' not found", seqname)
}

func (genome Genome) Contains(seqname string) bool {
  _, err := genome.GetIdx(seqname)
  return err == nil
}

// Copy of the genome with chromosomes sorted by name (byte order), which is
// the order used for chromosome ids in bigWig files.
func (genome Genome) Sorted() Genome {
  idx := make([]int, genome.Length())
  for i := range idx {
    idx[i] = i
  }
  sort.SliceStable(idx, func(i, j int) bool {
    return genome.Seqnames[idx[i]] < genome.Seqnames[idx[j]]
  })
  seqnames := make([]string, len(idx))
  lengths  := make([]int,    len(idx))
  for i, j := range idx {
    seqnames[i] = genome.Seqnames[j]
    lengths [i] = genome.Lengths [j]
  }
  return NewGenome(seqnames, lengths)
}

/* convert to string
 * -------------------------------------------------------------------------- */

func (genome Genome) String() string {
  var buffer bytes.Buffer

  printRow := func(i int) {
    if i != 0 {
      buffer.WriteString("\n")
    }
    buffer.WriteString(
      fmt.Sprintf("%10s %10d",
        genome.Seqnames[i],
        genome.Lengths [i]))
  }

  // pring header
  buffer.WriteString(
    fmt.Sprintf("%10s %10s\n", "seqnames", "lengths"))

  for i := 0; i < genome.Length(); i++ {
    printRow(i)
  }
  return buffer.String()
}

/* i/o
 * -------------------------------------------------------------------------- */

// Read chromosome sizes from a UCSC text file. The format is a whitespace
// separated table where the first column is the name of the chromosome and
// the second column the chromosome length.
func (genome *Genome) Read(reader io.Reader) error {
  seqnames := []string{}
  lengths  := []int{}

  scanner := bufio.NewScanner(reader)
  for scanner.Scan() {
    fields := strings.Fields(scanner.Text())
    if len(fields) == 0 {
      continue
    }
    if len(fields) < 2 {
      return fmt.Errorf("invalid chromosome sizes line `%s'", scanner.Text())
    }
    t, err := strconv.ParseInt(fields[1], 10, 64)
    if err != nil {
      return err
    }
    seqnames = append(seqnames, fields[0])
    lengths  = append(lengths,  int(t))
  }
  if err := scanner.Err(); err != nil {
    return err
  }
  *genome = NewGenome(seqnames, lengths)
  return nil
}

func (genome *Genome) Import(filename string) error {
  r, err := xopen.Ropen(filename)
  if err != nil {
    return err
  }
  defer r.Close()

  if err := genome.Read(r); err != nil {
    return fmt.Errorf("importing genome from `%s' failed: %v", filename, err)
  }
  return nil
}

func (genome Genome) Write(writer io.Writer) error {
  for i := 0; i < genome.Length(); i++ {
    if _, err := fmt.Fprintf(writer, "%s\t%d\n", genome.Seqnames[i], genome.Lengths[i]); err != nil {
      return err
    }
  }
  return nil
}

func (genome Genome) Export(filename string) error {
  f, err := os.Create(filename)
  if err != nil {
    return err
  }
  w := bufio.NewWriter(f)
  if err := genome.Write(w); err != nil {
    f.Close()
    return err
  }
  if err := w.Flush(); err != nil {
    f.Close()
    return err
  }
  return f.Close()
}

// Retrieve chromosome sizes from the public UCSC MySQL server.
func ImportGenomeFromUCSC(assembly string) (Genome, error) {
  var i_seqname string
  var i_length  int

  seqnames := []string{}
  lengths  := []int{}

  db, err := sql.Open("mysql",
    fmt.Sprintf("genome@tcp(genome-mysql.soe.ucsc.edu:3306)/%s", assembly))
  if err != nil {
    return Genome{}, err
  }
  defer db.Close()

  if err := db.Ping(); err != nil {
    return Genome{}, err
  }
  rows, err := db.Query("SELECT chrom, size FROM chromInfo")
  if err != nil {
    return Genome{}, err
  }
  defer rows.Close()
  for rows.Next() {
    if err := rows.Scan(&i_seqname, &i_length); err != nil {
      return Genome{}, err
    }
    seqnames = append(seqnames, i_seqname)
    lengths  = append(lengths,  i_length)
  }
  if err := rows.Err(); err != nil {
    return Genome{}, err
  }
  return NewGenome(seqnames, lengths), nil
}

/* chromosome size tables keyed by genome
 * -------------------------------------------------------------------------- */

// Set of chrom.sizes files. A table belongs to a genome if its path contains
// the name of the genome. If Directory is set, tables for unknown genomes are
// fetched from UCSC and stored as <Directory>/<genome>.chrom.sizes.
type ChromSizes struct {
  Paths     []string
  Directory string
  fetch     func(string) (Genome, error)
}

func NewChromSizes(paths []string, directory string) *ChromSizes {
  return &ChromSizes{Paths: paths, Directory: directory, fetch: ImportGenomeFromUCSC}
}

func (cs *ChromSizes) Lookup(genome string) (string, error) {
  for _, path := range cs.Paths {
    if strings.Contains(path, genome) {
      return path, nil
    }
  }
  if cs.Directory == "" {
    return "", fmt.Errorf("no chromosome sizes available for genome `%s'", genome)
  }
  filename := filepath.Join(cs.Directory, genome+".chrom.sizes")
  if fileExists(filename) {
    cs.Paths = append(cs.Paths, filename)
    return filename, nil
  }
  g, err := cs.fetch(genome)
  if err != nil {
    return "", fmt.Errorf("fetching chromosome sizes for genome `%s' failed: %v", genome, err)
  }
  if err := os.MkdirAll(cs.Directory, 0755); err != nil {
    return "", err
  }
  if err := g.Export(filename); err != nil {
    return "", err
  }
  Log.WithField("genome", genome).Infof("chromosome sizes written to `%s'", filename)
  cs.Paths = append(cs.Paths, filename)
  return filename, nil
}
