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
	"errors"
	"math/rand"
	"testing"

	"github.com/grailbio/covoverlap/encoding/depth"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// sliceSource replays a fixed list of records.
type sliceSource struct {
	recs []depth.Record
	err  error
}

func (s *sliceSource) Scan(rec *depth.Record) bool {
	if len(s.recs) == 0 {
		return false
	}
	*rec, s.recs = s.recs[0], s.recs[1:]
	return true
}

func (s *sliceSource) Err() error { return s.err }

// span returns records for positions [from, to] of seq, each with depth d.
func span(seq string, from, to, d int) []depth.Record {
	var recs []depth.Record
	for pos := from; pos <= to; pos++ {
		recs = append(recs, depth.Record{Seq: seq, Pos: pos, Depth: d})
	}
	return recs
}

func concat(parts ...[]depth.Record) []depth.Record {
	var recs []depth.Record
	for _, p := range parts {
		recs = append(recs, p...)
	}
	return recs
}

func assemble(t *testing.T, recs []depth.Record, opts Opts) []Interval {
	ivs, err := Assemble(&sliceSource{recs: recs}, opts)
	assert.NoError(t, err)
	return ivs
}

func TestAssembleSingleRun(t *testing.T) {
	ivs := assemble(t, span("seq1", 1, 120, 5), DefaultOpts)
	expect.EQ(t, ivs, []Interval{{Seq: "seq1", Start: 1, End: 120, MeanDepth: 5, MedianDepth: 5}})
	expect.EQ(t, ivs[0].Name(), "seq1_0")
	expect.EQ(t, ivs[0].Len(), 119)
}

func TestAssembleEmpty(t *testing.T) {
	expect.EQ(t, len(assemble(t, nil, DefaultOpts)), 0)
	// Nothing passes the per-base filter, so no run is ever opened.
	expect.EQ(t, len(assemble(t, span("seq1", 1, 300, 1), DefaultOpts)), 0)
}

func TestAssembleSourceError(t *testing.T) {
	src := &sliceSource{recs: span("seq1", 1, 10, 5), err: errors.New("truncated")}
	_, err := Assemble(src, DefaultOpts)
	expect.HasSubstr(t, err.Error(), "truncated")
}

func TestAssembleSplits(t *testing.T) {
	recs := concat(
		span("seq1", 1, 200, 10),     // kept
		span("seq1", 1000, 1050, 10), // jump > 500, too short: dropped
		span("seq1", 2000, 2300, 1),  // below per-base depth: ignored
		span("seq1", 3000, 3150, 4),  // kept
		span("seq2", 3151, 3300, 6),  // new sequence, kept
		span("seq2", 9000, 9010, 1),  // ignored
		span("seq2", 9500, 9520, 3),  // terminal and short: still emitted
	)
	ivs := assemble(t, recs, DefaultOpts)
	expect.EQ(t, ivs, []Interval{
		{Seq: "seq1", Start: 1, End: 200, MeanDepth: 10, MedianDepth: 10},
		{Seq: "seq1", Start: 3000, End: 3150, MeanDepth: 4, MedianDepth: 4},
		{Seq: "seq2", Start: 3151, End: 3300, MeanDepth: 6, MedianDepth: 6},
		{Seq: "seq2", Start: 9500, End: 9520, MeanDepth: 3, MedianDepth: 3},
	})
}

func TestTerminalRun(t *testing.T) {
	short := func(from int) []depth.Record { return span("seq1", from, from+50, 8) }
	long := span("seq1", 1000, 1200, 8)

	// The same short run is dropped in the middle of the stream but kept at
	// the end.
	ivs := assemble(t, concat(short(1), long, short(5000)), DefaultOpts)
	assert.EQ(t, len(ivs), 2)
	expect.EQ(t, ivs[0].Start, 1000)
	expect.EQ(t, ivs[1].Start, 5000)
	expect.EQ(t, ivs[1].End, 5050)

	opts := DefaultOpts
	opts.FilterTerminal = true
	ivs = assemble(t, concat(short(1), long, short(5000)), opts)
	assert.EQ(t, len(ivs), 1)
	expect.EQ(t, ivs[0].Start, 1000)

	// A single retained base is a valid terminal run.
	ivs = assemble(t, []depth.Record{{Seq: "seq9", Pos: 7, Depth: 3}}, DefaultOpts)
	expect.EQ(t, ivs, []Interval{{Seq: "seq9", Start: 7, End: 7, MeanDepth: 3, MedianDepth: 3}})
}

func TestGapCounting(t *testing.T) {
	opts := DefaultOpts
	opts.GapLen = 20
	opts.JumpLen = 100
	// Jumps of 20, 50 and 100 are gaps; a jump of 19 is not.
	recs := concat(
		span("seq1", 1, 50, 5),
		span("seq1", 70, 120, 5),  // jump 20
		span("seq1", 170, 200, 5), // jump 50
		span("seq1", 219, 230, 5), // jump 19
		span("seq1", 330, 340, 5), // jump 100
	)
	ivs := assemble(t, recs, opts)
	assert.EQ(t, len(ivs), 1)
	expect.EQ(t, ivs[0].Gaps, 3)
	expect.EQ(t, ivs[0].End, 340)

	// Filtered bases do not break a run, but the distance they span still
	// counts toward the jump.
	recs = concat(span("seq1", 1, 100, 5), span("seq1", 101, 130, 0), span("seq1", 131, 240, 5))
	ivs = assemble(t, recs, opts)
	assert.EQ(t, len(ivs), 1)
	expect.EQ(t, ivs[0].Gaps, 1)
	expect.EQ(t, ivs[0].MeanDepth, 5)
}

func TestStatistics(t *testing.T) {
	for _, test := range []struct {
		depths       []int
		mean, median int
	}{
		{[]int{5}, 5, 5},
		{[]int{2, 3}, 2, 2},        // 2.5 rounds to even
		{[]int{3, 4}, 4, 3},        // 3.5 rounds to even; median truncated
		{[]int{1, 2, 3, 10}, 4, 2}, // median (2+3)/2 truncated
		{[]int{10, 1, 7}, 6, 7},
	} {
		expect.EQ(t, mean(test.depths), test.mean, test.depths)
		expect.EQ(t, median(test.depths), test.median, test.depths)
	}
	// median must not reorder its input.
	d := []int{9, 1, 5}
	median(d)
	expect.EQ(t, d, []int{9, 1, 5})
}

func TestRunExtend(t *testing.T) {
	opts := DefaultOpts
	var r Run
	expect.False(t, r.Open())

	r, _, sealed := r.Extend(depth.Record{Seq: "s", Pos: 10, Depth: 4}, &opts)
	expect.False(t, sealed)
	expect.EQ(t, r, Run{Seq: "s", Start: 10, End: 10, Depths: []int{4}})

	r, _, sealed = r.Extend(depth.Record{Seq: "s", Pos: 40, Depth: 6}, &opts)
	expect.False(t, sealed)
	expect.EQ(t, r, Run{Seq: "s", Start: 10, End: 40, Depths: []int{4, 6}, Gaps: 1})

	next, iv, sealed := r.Extend(depth.Record{Seq: "t", Pos: 41, Depth: 2}, &opts)
	expect.True(t, sealed)
	expect.EQ(t, iv, Interval{Seq: "s", Start: 10, End: 40, MeanDepth: 5, MedianDepth: 5, Gaps: 1})
	expect.EQ(t, next, Run{Seq: "t", Start: 41, End: 41, Depths: []int{2}})
}

func TestAssemblerStats(t *testing.T) {
	a := NewAssembler(DefaultOpts)
	for _, rec := range concat(span("seq1", 1, 10, 0), span("seq1", 11, 20, 5), span("seq1", 900, 1100, 5)) {
		a.Add(rec)
	}
	_, ok := a.Flush()
	expect.True(t, ok)
	_, ok = a.Flush()
	expect.False(t, ok)
	expect.EQ(t, a.Stats, Stats{Records: 221, Retained: 211, Sealed: 2, Kept: 1})
}

// randomStream generates a sorted depth stream over a few sequences, with
// runs of varying depth separated by jumps of varying length.
func randomStream(r *rand.Rand) []depth.Record {
	var recs []depth.Record
	for _, seq := range []string{"a", "b", "c"} {
		pos := 1 + r.Intn(50)
		for i := 0; i < 20; i++ {
			n := 1 + r.Intn(200)
			d := r.Intn(8)
			recs = append(recs, span(seq, pos, pos+n, d)...)
			pos += n + 1 + r.Intn(800)
		}
	}
	return recs
}

func TestAssembleProperties(t *testing.T) {
	r := rand.New(rand.NewSource(0))
	for iter := 0; iter < 50; iter++ {
		recs := randomStream(r)

		// Determinism.
		expect.EQ(t, assemble(t, recs, DefaultOpts), assemble(t, recs, DefaultOpts))

		// Raising a keep-threshold never increases the number of kept runs.
		// FilterTerminal makes every run subject to the thresholds.
		base := DefaultOpts
		base.FilterTerminal = true
		n := len(assemble(t, recs, base))
		stricter := base
		stricter.MinFeatureLen += 50
		expect.LE(t, len(assemble(t, recs, stricter)), n)
		stricter = base
		stricter.MinMeanDepth += 2
		expect.LE(t, len(assemble(t, recs, stricter)), n)

		// Lowering JumpLen never decreases the number of runs.
		all := Opts{MinBaseDepth: base.MinBaseDepth, GapLen: 20, JumpLen: 500}
		a := NewAssembler(all)
		for _, rec := range recs {
			a.Add(rec)
		}
		a.Flush()
		b := NewAssembler(Opts{MinBaseDepth: base.MinBaseDepth, GapLen: 20, JumpLen: 100})
		for _, rec := range recs {
			b.Add(rec)
		}
		b.Flush()
		expect.GE(t, b.Stats.Sealed, a.Stats.Sealed)

		for _, iv := range assemble(t, recs, DefaultOpts) {
			expect.LE(t, iv.Start, iv.End)
		}
	}
}
