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
	"math"
	"sort"
	"strconv"

	"github.com/grailbio/covoverlap/encoding/depth"
)

// Interval is a sealed coverage run: a span of sufficiently deep bases,
// possibly containing small jumps, summarized into a single feature.
type Interval struct {
	Seq string
	// Start and End are the positions of the first and last retained base of
	// the run (1-based, closed).
	Start, End int
	// MeanDepth and MedianDepth summarize the depths of the retained bases
	// only.
	MeanDepth, MedianDepth int
	// Gaps is the number of internal jumps of at least Opts.GapLen.
	Gaps int
}

// Len returns End-Start, the length used by the feature-length threshold and
// by overlap percentages.
func (iv Interval) Len() int { return iv.End - iv.Start }

// Name returns the interval's identity, "<seq>_<0-based start>".
func (iv Interval) Name() string {
	return iv.Seq + "_" + strconv.Itoa(iv.Start-1)
}

// Run is the state of the assembler between two bases: the currently open
// run.  The zero Run is closed; it has no bases.
//
// Run values are treated as immutable by Extend.  The depth buffer is shared
// between a Run and the Run that Extend derives from it, so once Extend has
// been called only its result should be used.
type Run struct {
	Seq        string
	Start, End int
	Depths     []int
	Gaps       int
}

// Open returns whether r holds at least one base.
func (r Run) Open() bool { return len(r.Depths) > 0 }

// newRun opens a run at rec.
func newRun(rec depth.Record) Run {
	return Run{
		Seq:    rec.Seq,
		Start:  rec.Pos,
		End:    rec.Pos,
		Depths: []int{rec.Depth},
	}
}

// Extend feeds one retained base to r.  If the base belongs to r (same
// sequence, at most opts.JumpLen past r.End), the extended run is returned
// with ok=false.  Otherwise r is sealed into an Interval, a new run is opened
// at rec, and both are returned with ok=true.  A closed r simply opens a new
// run.
//
// Extend does not apply the per-base depth filter; callers must only pass
// bases that passed Opts.Retain.
func (r Run) Extend(rec depth.Record, opts *Opts) (next Run, sealed Interval, ok bool) {
	if !r.Open() {
		return newRun(rec), Interval{}, false
	}
	jump := rec.Pos - r.End
	if rec.Seq != r.Seq || jump > opts.JumpLen {
		return newRun(rec), r.Seal(), true
	}
	next = r
	next.End = rec.Pos
	next.Depths = append(r.Depths, rec.Depth)
	if jump >= opts.GapLen {
		next.Gaps++
	}
	return next, Interval{}, false
}

// Seal computes r's summary.  It must not be called on a closed Run.
func (r Run) Seal() Interval {
	return Interval{
		Seq:         r.Seq,
		Start:       r.Start,
		End:         r.End,
		MeanDepth:   mean(r.Depths),
		MedianDepth: median(r.Depths),
		Gaps:        r.Gaps,
	}
}

// mean returns the average of depths, rounded half to even.
func mean(depths []int) int {
	sum := 0
	for _, d := range depths {
		sum += d
	}
	return int(math.RoundToEven(float64(sum) / float64(len(depths))))
}

// median returns the middle of the sorted depths.  For an even count it is
// the average of the two middle values, truncated.
func median(depths []int) int {
	sorted := append([]int(nil), depths...)
	sort.Ints(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
