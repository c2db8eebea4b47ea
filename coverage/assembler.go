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
package coverage

import (
	"fmt"

	"github.com/grailbio/covoverlap/encoding/depth"
)

// Opts controls run segmentation and the thresholds a sealed run must pass.
type Opts struct {
	// MinBaseDepth: bases with zero depth or depth below this are ignored
	// entirely.  They neither extend nor seal a run.
	MinBaseDepth int
	// MinMeanDepth: sealed runs with a lower mean depth are dropped.
	MinMeanDepth int
	// MinFeatureLen: sealed runs with End-Start below this are dropped.
	MinFeatureLen int
	// GapLen: an extending base at least this far past the run's last base is
	// counted as a gap.
	GapLen int
	// JumpLen: a base more than this far past the run's last base (e.g. across
	// an intron) starts a new run.
	JumpLen int
	// FilterTerminal applies the MinFeatureLen/MinMeanDepth thresholds to the
	// last run of the stream too.  By default the last run is always emitted.
	FilterTerminal bool
}

// DefaultOpts is the default segmentation configuration.
var DefaultOpts = Opts{
	MinBaseDepth:  2,
	MinMeanDepth:  2,
	MinFeatureLen: 100,
	GapLen:        20,
	JumpLen:       500,
}

// Validate checks that opts is usable.
func (opts *Opts) Validate() error {
	switch {
	case opts.MinBaseDepth < 0:
		return fmt.Errorf("coverage: negative minimum base depth %d", opts.MinBaseDepth)
	case opts.MinMeanDepth < 0:
		return fmt.Errorf("coverage: negative minimum mean depth %d", opts.MinMeanDepth)
	case opts.MinFeatureLen < 0:
		return fmt.Errorf("coverage: negative minimum feature length %d", opts.MinFeatureLen)
	case opts.GapLen < 0:
		return fmt.Errorf("coverage: negative gap length %d", opts.GapLen)
	case opts.JumpLen < 0:
		return fmt.Errorf("coverage: negative jump length %d", opts.JumpLen)
	}
	return nil
}

// Retain returns whether rec is deep enough to take part in a run.
func (opts *Opts) Retain(rec depth.Record) bool {
	return rec.Depth != 0 && rec.Depth >= opts.MinBaseDepth
}

// Keep returns whether a sealed interval passes the length and mean-depth
// thresholds.
func (opts *Opts) Keep(iv Interval) bool {
	return iv.Len() >= opts.MinFeatureLen && iv.MeanDepth >= opts.MinMeanDepth
}

// Assembler segments an ordered depth stream into coverage intervals.
// Records must be grouped by sequence, with nondecreasing positions within a
// sequence; this is not checked.  An Assembler is not threadsafe.
type Assembler struct {
	opts Opts
	run  Run
	// Stats are updated as records are added.
	Stats Stats
}

// Stats counts what an Assembler has seen.
type Stats struct {
	// Records is the number of depth records added.
	Records int
	// Retained counts records that passed the per-base depth filter.
	Retained int
	// Sealed counts runs that were closed, including the terminal run.
	Sealed int
	// Kept counts sealed runs that were emitted.
	Kept int
}

// NewAssembler creates an Assembler.
func NewAssembler(opts Opts) *Assembler {
	return &Assembler{opts: opts}
}

// Add feeds the next record.  If it causes the open run to be sealed and the
// sealed run passes the thresholds, the run is returned with ok=true.
func (a *Assembler) Add(rec depth.Record) (iv Interval, ok bool) {
	a.Stats.Records++
	if !a.opts.Retain(rec) {
		return Interval{}, false
	}
	a.Stats.Retained++
	next, sealed, isSealed := a.run.Extend(rec, &a.opts)
	a.run = next
	if !isSealed {
		return Interval{}, false
	}
	a.Stats.Sealed++
	if !a.opts.Keep(sealed) {
		return Interval{}, false
	}
	a.Stats.Kept++
	return sealed, true
}

// Flush seals the last open run at the end of the stream.  Unlike runs
// sealed by Add, the terminal run is returned whether or not it passes the
// length and depth thresholds, unless Opts.FilterTerminal is set.  Flush
// returns ok=false if no run is open.  The Assembler is reset, so Flush
// returns each run at most once.
func (a *Assembler) Flush() (iv Interval, ok bool) {
	if !a.run.Open() {
		return Interval{}, false
	}
	iv = a.run.Seal()
	a.run = Run{}
	a.Stats.Sealed++
	if a.opts.FilterTerminal && !a.opts.Keep(iv) {
		return Interval{}, false
	}
	a.Stats.Kept++
	return iv, true
}

// Source is a stream of depth records, such as a *depth.Scanner.
type Source interface {
	Scan(rec *depth.Record) bool
	Err() error
}

// Assemble drains src and returns its coverage intervals in stream order.
func Assemble(src Source, opts Opts) ([]Interval, error) {
	var (
		ivs []Interval
		rec depth.Record
	)
	a := NewAssembler(opts)
	for src.Scan(&rec) {
		if iv, ok := a.Add(rec); ok {
			ivs = append(ivs, iv)
		}
	}
	if err := src.Err(); err != nil {
		return nil, err
	}
	if iv, ok := a.Flush(); ok {
		ivs = append(ivs, iv)
	}
	return ivs, nil
}
