// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pipeline

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/covoverlap/coverage"
)

// Opts configures Run.
type Opts struct {
	// DepthPath is the samtools depth table.  Empty or "-" reads stdin.
	DepthPath string
	// GFFPath is the optional reference annotation.  If empty, coverage
	// features are written without classification.
	GFFPath string
	// TypeFilter restricts the reference to GFF lines whose type column
	// contains this string (e.g. "mRNA").  Empty keeps all lines.
	TypeFilter string

	// Segmentation thresholds; see coverage.Opts.
	MinMeanDepth   int
	MinBaseDepth   int
	MinFeatureLen  int
	GapLen         int
	JumpLen        int
	FilterTerminal bool

	// BEDPath optionally restricts assembly to depth positions inside the
	// BED's intervals (outside them, with InvertBED).
	BEDPath   string
	InvertBED bool
	// BEDOneBased reads the BED's intervals as 1-based, closed [start, end]
	// instead of 0-based, half-open.
	BEDOneBased bool
	// Region optionally restricts assembly to one region, formatted as
	// <contig>:<1-based first pos>-<last pos>, <contig>:<pos> or <contig>.
	// At most one of BEDPath and Region may be set.
	Region string

	// OutPrefix is the output path prefix; ".gff" (".gff.gz" with Bgzip) is
	// appended.
	OutPrefix string
	Bgzip     bool
	// Parallelism bounds the number of sequences classified concurrently, and
	// the number of bgzip compression threads.  0 = runtime.NumCPU().
	Parallelism int
}

// DefaultOpts holds the defaults of the command-line tool.
var DefaultOpts = Opts{
	MinMeanDepth:  coverage.DefaultOpts.MinMeanDepth,
	MinBaseDepth:  coverage.DefaultOpts.MinBaseDepth,
	MinFeatureLen: coverage.DefaultOpts.MinFeatureLen,
	GapLen:        coverage.DefaultOpts.GapLen,
	JumpLen:       coverage.DefaultOpts.JumpLen,
	OutPrefix:     "out",
}

// CoverageOpts extracts the segmentation options.
func (opts *Opts) CoverageOpts() coverage.Opts {
	return coverage.Opts{
		MinBaseDepth:   opts.MinBaseDepth,
		MinMeanDepth:   opts.MinMeanDepth,
		MinFeatureLen:  opts.MinFeatureLen,
		GapLen:         opts.GapLen,
		JumpLen:        opts.JumpLen,
		FilterTerminal: opts.FilterTerminal,
	}
}

// OutPath returns the path of the GFF output.
func (opts *Opts) OutPath() string {
	if opts.Bgzip {
		return opts.OutPrefix + ".gff.gz"
	}
	return opts.OutPrefix + ".gff"
}

// Validate checks opts for errors that would make Run fail.
func (opts *Opts) Validate() error {
	covOpts := opts.CoverageOpts()
	if err := covOpts.Validate(); err != nil {
		return errors.E(errors.Invalid, err)
	}
	if opts.BEDPath != "" && opts.Region != "" {
		return errors.E(errors.Invalid, "at most one of a BED path and a region may be specified")
	}
	if (opts.InvertBED || opts.BEDOneBased) && opts.BEDPath == "" {
		return errors.E(errors.Invalid, "BED inversion and one-based BED coordinates require a BED path")
	}
	if opts.OutPrefix == "" {
		return errors.E(errors.Invalid, "empty output prefix")
	}
	if opts.Parallelism < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("negative parallelism %d", opts.Parallelism))
	}
	if opts.TypeFilter != "" && opts.GFFPath == "" {
		log.Printf("type filter %q has no effect without a reference annotation", opts.TypeFilter)
	}
	if opts.GapLen > opts.JumpLen {
		log.Printf("gap length %d exceeds jump length %d; no gaps will be counted", opts.GapLen, opts.JumpLen)
	}
	return nil
}
