package interval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/klauspost/compress/gzip"
)

// PosType is BEDUnion's coordinate type.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// NewBEDOpts defines behavior of this package's BED-loading functions.
type NewBEDOpts struct {
	// Invert causes the complement of the interval-union to be returned, so
	// that the listed intervals are excluded instead of selected.  Only
	// sequences mentioned in the BED are affected; positions on unmentioned
	// sequences are never contained.
	Invert bool
	// OneBasedInput interprets the BED interval boundaries as one-based [start,
	// end] instead of the usual zero-based [start, end).
	OneBasedInput bool
}

// BEDUnion is a chromosome-keyed set of disjoint intervals.  Each value is a
// sorted sequence of endpoints: the (0-based) start of interval #k is element
// [2k] and its end is element [2k+1].  A position p is contained iff the
// number of endpoints <= p is odd.
//
// BEDUnion caches the last lookup, so queries made in sequential order (as
// when scanning a sorted depth stream) are fast.  It is therefore not
// threadsafe.
type BEDUnion struct {
	nameMap map[string][]PosType

	lastChrName      string
	lastChrIntervals []PosType
	// lastPosPlus1 is 1 plus the last queried position.
	lastPosPlus1 PosType
	// lastIdx is searchPosType(lastChrIntervals, lastPosPlus1).
	lastIdx int
	// isSequential is true if all queries since the last chromosome change have
	// been in order of nondecreasing position.
	isSequential bool
}

// searchPosType returns the index of the first element of a that is >= x,
// or len(a).
func searchPosType(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// fwdsearchPosType is searchPosType for a query known to be at or after
// index idx.  It gallops forward from idx before finishing with a binary
// search, which beats a plain binary search when queries are sequential.
func fwdsearchPosType(a []PosType, x PosType, idx int) int {
	lo, hi, step := idx, len(a), 1
	for idx < hi {
		if a[idx] >= x {
			hi = idx
			break
		}
		lo = idx + 1
		idx += step
		step *= 2
	}
	return lo + searchPosType(a[lo:hi], x)
}

// ContainsByName checks whether the (0-based) position pos of chromosome
// chrName is in the union.
func (u *BEDUnion) ContainsByName(chrName string, pos PosType) bool {
	posPlus1 := pos + 1
	if chrName != u.lastChrName {
		u.lastChrName = chrName
		u.lastChrIntervals = u.nameMap[chrName]
		if u.lastChrIntervals == nil {
			return false
		}
		u.lastIdx = searchPosType(u.lastChrIntervals, posPlus1)
		u.lastPosPlus1 = posPlus1
		u.isSequential = true
		return u.lastIdx&1 == 1
	}
	if u.lastChrIntervals == nil {
		return false
	}
	if u.isSequential {
		if posPlus1 >= u.lastPosPlus1 {
			u.lastIdx = fwdsearchPosType(u.lastChrIntervals, posPlus1, u.lastIdx)
			u.lastPosPlus1 = posPlus1
			return u.lastIdx&1 == 1
		}
		u.isSequential = false
	}
	return searchPosType(u.lastChrIntervals, posPlus1)&1 == 1
}

// Len returns the number of chromosomes with at least one endpoint.
func (u *BEDUnion) Len() int { return len(u.nameMap) }

// Entry represents a single interval, with 0-based coordinates.
type Entry struct {
	ChrName string
	Start0  PosType
	End     PosType
}

// unionBuilder accumulates sorted intervals into a BEDUnion, merging
// touching/overlapping intervals and dropping empty ones.
type unionBuilder struct {
	opts      NewBEDOpts
	union     BEDUnion
	chr       string
	endpoints []PosType
	// cur is the pending (unmerged) interval on chr; curEnd == -1 if none.
	curStart, curEnd PosType
	totBases         int
}

func newUnionBuilder(opts NewBEDOpts) *unionBuilder {
	return &unionBuilder{opts: opts, union: BEDUnion{nameMap: map[string][]PosType{}}}
}

// finishChr stores the endpoints of the current chromosome.
func (b *unionBuilder) finishChr() {
	if b.chr == "" {
		return
	}
	if b.curEnd != -1 {
		b.endpoints = append(b.endpoints, b.curStart, b.curEnd)
	}
	if b.opts.Invert {
		b.endpoints = append([]PosType{-1}, b.endpoints...)
		b.endpoints = append(b.endpoints, PosTypeMax)
	}
	b.union.nameMap[b.chr] = b.endpoints
}

// add adds the interval [start, end) on chr.  Intervals must be sorted by
// start within a chromosome, and each chromosome must appear in one block.
func (b *unionBuilder) add(chr string, start, end PosType) error {
	if start < 0 {
		return fmt.Errorf("negative start coordinate %d", start)
	}
	if end < start || end >= PosTypeMax {
		return fmt.Errorf("invalid coordinate pair [%d, %d)", start, end)
	}
	if chr != b.chr {
		b.finishChr()
		if _, found := b.union.nameMap[chr]; found {
			return fmt.Errorf("unsorted input (split chromosome %v)", chr)
		}
		// An empty interval still counts as a mention of the chromosome.
		b.chr, b.endpoints, b.curStart, b.curEnd = chr, []PosType{}, -1, -1
	}
	if end == start {
		return nil
	}
	switch {
	case b.curEnd == -1:
		b.curStart, b.curEnd = start, end
		b.totBases += int(end - start)
	case start > b.curEnd:
		b.endpoints = append(b.endpoints, b.curStart, b.curEnd)
		b.curStart, b.curEnd = start, end
		b.totBases += int(end - start)
	case start < b.curStart:
		return fmt.Errorf("unsorted input at %s:%d", chr, start)
	case end > b.curEnd:
		b.totBases += int(end - b.curEnd)
		b.curEnd = end
	}
	return nil
}

func (b *unionBuilder) finish() BEDUnion {
	b.finishChr()
	return b.union
}

// NewBEDUnion loads the intervals from a BED sorted by chromosome and start
// coordinate.  Only the first three columns are used; blank lines and
// "track"/"browser"/"#" header lines are skipped.
func NewBEDUnion(reader io.Reader, opts NewBEDOpts) (BEDUnion, error) {
	var startSubtract PosType
	if opts.OneBasedInput {
		startSubtract = 1
	}
	b := newUnionBuilder(opts)
	scanner := bufio.NewScanner(reader)
	for lineIdx := 1; scanner.Scan(); lineIdx++ {
		// Bytes() does not allocate.  The fields alias the scanner's buffer, so
		// the chromosome name is copied whenever it changes.
		fields := strings.Fields(gunsafe.BytesToString(scanner.Bytes()))
		if len(fields) == 0 || fields[0][0] == '#' || fields[0] == "track" || fields[0] == "browser" {
			continue
		}
		if len(fields) < 3 {
			return BEDUnion{}, fmt.Errorf("interval.NewBEDUnion: line %d has fewer tokens than expected", lineIdx)
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return BEDUnion{}, fmt.Errorf("interval.NewBEDUnion: line %d: %v", lineIdx, err)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return BEDUnion{}, fmt.Errorf("interval.NewBEDUnion: line %d: %v", lineIdx, err)
		}
		chr := fields[0]
		if chr != b.chr {
			chr = string([]byte(chr))
		}
		if err := b.add(chr, PosType(start)-startSubtract, PosType(end)); err != nil {
			return BEDUnion{}, fmt.Errorf("interval.NewBEDUnion: line %d: %v", lineIdx, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return BEDUnion{}, err
	}
	log.Printf("BED loaded, %d base(s) covered.", b.totBases)
	return b.finish(), nil
}

// NewBEDUnionFromPath is a wrapper for NewBEDUnion that takes a path instead
// of an io.Reader.  Gzipped BEDs are decompressed.
func NewBEDUnionFromPath(ctx context.Context, path string, opts NewBEDOpts) (bedUnion BEDUnion, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, infile, &err)
	reader := io.Reader(infile.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(reader); err != nil {
			return
		}
		defer gz.Close() // nolint: errcheck
		reader = gz
	}
	return NewBEDUnion(reader, opts)
}

// NewBEDUnionFromEntries initializes a BEDUnion from a sorted []Entry.
// This ignores opts.OneBasedInput, since Start0 is defined to be zero-based.
func NewBEDUnionFromEntries(entries []Entry, opts NewBEDOpts) (BEDUnion, error) {
	b := newUnionBuilder(opts)
	for _, e := range entries {
		if err := b.add(e.ChrName, e.Start0, e.End); err != nil {
			return BEDUnion{}, fmt.Errorf("interval.NewBEDUnionFromEntries: %v", err)
		}
	}
	return b.finish(), nil
}

// ParseRegionString parses a region string of one of the forms
//   [contig ID]:[1-based first pos]-[last pos]
//   [contig ID]:[1-based pos]
//   [contig ID]
// returning a contig ID and 0-based interval boundaries.  The interval
// [0, PosTypeMax - 1) is returned if there is no positional restriction.
func ParseRegionString(region string) (result Entry, err error) {
	if len(region) == 0 {
		err = fmt.Errorf("interval.ParseRegionString: empty region string")
		return
	}
	colonPos := strings.LastIndexByte(region, ':')
	if colonPos == -1 {
		return Entry{ChrName: region, Start0: 0, End: PosTypeMax - 1}, nil
	}
	if colonPos == 0 {
		err = fmt.Errorf("interval.ParseRegionString: empty contig ID")
		return
	}
	result.ChrName = region[:colonPos]
	rangeStr := strings.Replace(region[colonPos+1:], ",", "", -1)
	var start1, end int
	if dashPos := strings.IndexByte(rangeStr, '-'); dashPos == -1 {
		if start1, err = strconv.Atoi(rangeStr); err != nil {
			return
		}
		end = start1
	} else {
		if start1, err = strconv.Atoi(rangeStr[:dashPos]); err != nil {
			return
		}
		if end, err = strconv.Atoi(rangeStr[dashPos+1:]); err != nil {
			return
		}
	}
	if start1 <= 0 {
		err = fmt.Errorf("interval.ParseRegionString: position %d in region string out of range", start1)
		return
	}
	if end < start1 || end >= PosTypeMax {
		err = fmt.Errorf("interval.ParseRegionString: invalid range string %v", rangeStr)
		return
	}
	result.Start0 = PosType(start1 - 1)
	result.End = PosType(end)
	return
}
