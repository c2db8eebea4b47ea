// Package depth reads per-base sequencing depth tables, as produced by
// "samtools depth" for a single sample.  Each row holds a sequence name, a
// 1-based position and a depth, separated by tabs.
package depth

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// NumFields is the number of columns in every depth row.
const NumFields = 3

// Record is a single row of a depth table.
type Record struct {
	// Seq is the reference sequence (contig, chromosome) name.
	Seq string
	// Pos is the 1-based position on Seq.
	Pos int
	// Depth is the number of reads covering Pos.
	Depth int
}

// Scanner reads Records from a depth table.  The Scan method returns the
// next record, returning a boolean indicating whether the read succeeded.
// Scanners are not threadsafe.
//
// Every row must have exactly NumFields columns with numeric position and
// depth.  Any other row stops the scan with an error naming the line; the
// caller should treat it as fatal.  Lines starting with '#' are skipped.
type Scanner struct {
	r   *tsv.Reader
	row Record
	// line counts records, not physical lines; comments are not included.
	line int
	err  error
}

// NewScanner constructs a Scanner that reads raw depth rows from r.
func NewScanner(r io.Reader) *Scanner {
	tr := tsv.NewReader(bufio.NewReaderSize(r, 64<<10))
	tr.Comment = '#'
	tr.LazyQuotes = true
	tr.FieldsPerRecord = NumFields
	return &Scanner{r: tr}
}

// Scan reads the next row into rec.  Once Scan returns false, it never
// returns true again.  Upon completion, the user should check the Err method
// to determine whether scanning stopped because of an error or because the
// end of the stream was reached.
func (s *Scanner) Scan(rec *Record) bool {
	if s.err != nil {
		return false
	}
	s.line++
	if err := s.r.Read(&s.row); err != nil {
		if err == io.EOF {
			s.err = io.EOF
		} else {
			s.err = errors.Wrapf(err, "depth: malformed record %d (want %d tab-separated fields: name, position, depth)", s.line, NumFields)
		}
		return false
	}
	if s.row.Pos < 1 || s.row.Depth < 0 {
		s.err = errors.Errorf("depth: record %d: invalid position %d or depth %d", s.line, s.row.Pos, s.row.Depth)
		return false
	}
	*rec = s.row
	return true
}

// Err returns the scanning error, if any.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}

// Input is an opened depth table.  Close must be called once the caller is
// done scanning.
type Input struct {
	*Scanner
	close func() error
}

// Close releases the underlying file, if any.
func (in *Input) Close() error {
	if in.close == nil {
		return nil
	}
	return in.close()
}

// Open opens the depth table at path.  An empty path or "-" reads standard
// input.  Gzip, bgzip, bzip2 and zstd inputs are detected from their magic
// bytes and decompressed transparently.
func Open(ctx context.Context, path string) (*Input, error) {
	if path == "" || path == "-" {
		u, _ := compress.NewReader(os.Stdin)
		return &Input{Scanner: NewScanner(u), close: u.Close}, nil
	}
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	u, _ := compress.NewReader(f.Reader(ctx))
	return &Input{
		Scanner: NewScanner(u),
		close: func() error {
			err := u.Close()
			if e := f.Close(ctx); e != nil && err == nil {
				err = e
			}
			return err
		},
	}, nil
}
