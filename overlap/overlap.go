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

// Package overlap classifies coverage intervals against reference features.
//
// Each (coverage interval, reference feature) pair on the same sequence is
// tested against an ordered list of geometric rules.  With C the coverage
// interval (1) and R the reference feature (2):
//
//   tail)    1------------------>
//                       2------------------>
//
//   head)               1------------------>
//            2------------------>
//
//   exact)      1------------------>
//               2------------------>
//
//   inset)           1-------->
//               2------------------>
//
//   flank)      1------------------>
//                    2-------->
//
// A coverage interval which matches no feature is reported once as "null".
package overlap

import (
	"strconv"

	"github.com/grailbio/covoverlap/coverage"
	"github.com/grailbio/covoverlap/encoding/gff"
)

// Diagram illustrates the overlap types, with 1 the coverage interval and 2
// the reference feature.
const Diagram = `Overlap types (1 = coverage feature, 2 = reference feature):

  tail)    1------------------>
                       2------------------>

  head)               1------------------>
           2------------------>

  exact)      1------------------>
              2------------------>

  inset)           1-------->
              2------------------>

  flank)      1------------------>
                   2-------->

  null)    no reference feature overlaps 1
`

// Type is the geometric relationship between a coverage interval and a
// reference feature.
type Type int

const (
	// Null means the coverage interval overlaps no reference feature.
	Null Type = iota
	// Tail means the interval's end overlaps the feature's start.
	Tail
	// Head means the interval's start overlaps the feature's end.
	Head
	// Exact means identical coordinates.
	Exact
	// Inset means the interval lies within the feature.
	Inset
	// Flank means the feature lies strictly within the interval.
	Flank
	// NumTypes is the number of overlap types.
	NumTypes = int(Flank) + 1
)

var typeNames = [NumTypes]string{"null", "tail", "head", "exact", "inset", "flank"}

func (t Type) String() string {
	if t < 0 || int(t) >= NumTypes {
		return "Type(" + strconv.Itoa(int(t)) + ")"
	}
	return typeNames[t]
}

// Record is one classified relationship.  A Null record has an empty RefID
// and zero Len and Pcnt.
type Record struct {
	Interval coverage.Interval
	RefID    string
	Type     Type
	// Len is the overlap length, in the same units as Interval.Len().
	Len int
	// Pcnt is Len as a percentage of Interval.Len(), rounded to one decimal.
	Pcnt float64
}

// Tally counts emitted records per overlap type.  Non-null types are counted
// once per emitted record; Null is counted once per interval without any
// match.
type Tally [NumTypes]int

// Add counts one record of type typ.
func (t *Tally) Add(typ Type) { t[typ]++ }

// Merge adds the counts of o to t.
func (t *Tally) Merge(o Tally) {
	for i, n := range o {
		t[i] += n
	}
}

// Count returns the count for typ.
func (t Tally) Count(typ Type) int { return t[typ] }

// Total returns the number of records counted.
func (t Tally) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// rule is one row of the classification table.  match reports whether the
// coverage interval [cs, ce] and feature [rs, re] have this rule's
// relationship; length returns the overlap length.  Proportional rules report
// the overlap percentage relative to the interval length, others report 100.
type rule struct {
	typ          Type
	match        func(cs, ce, rs, re int) bool
	length       func(cs, ce, rs, re int) int
	proportional bool
}

// rules is evaluated in order and the first match wins.  The predicates
// overlap (e.g. every exact match also satisfies inset), so the order decides
// the classification at equal boundaries.
var rules = []rule{
	{
		typ:          Tail,
		match:        func(cs, ce, rs, re int) bool { return rs < ce && ce <= re && cs < rs },
		length:       func(cs, ce, rs, re int) int { return ce - rs },
		proportional: true,
	},
	{
		typ:          Head,
		match:        func(cs, ce, rs, re int) bool { return rs <= cs && cs < re && ce > re },
		length:       func(cs, ce, rs, re int) int { return re - cs },
		proportional: true,
	},
	{
		typ:    Exact,
		match:  func(cs, ce, rs, re int) bool { return rs == cs && ce == re },
		length: func(cs, ce, rs, re int) int { return ce - cs },
	},
	{
		typ:    Inset,
		match:  func(cs, ce, rs, re int) bool { return rs <= cs && ce <= re },
		length: func(cs, ce, rs, re int) int { return ce - cs },
	},
	{
		typ:          Flank,
		match:        func(cs, ce, rs, re int) bool { return rs > cs && ce > re },
		length:       func(cs, ce, rs, re int) int { return re - rs },
		proportional: true,
	},
}

// percent returns 100*n/d rounded to one decimal place.  It returns 0 for an
// empty interval.
func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	p, err := strconv.ParseFloat(strconv.FormatFloat(float64(n)/float64(d)*100, 'f', 1, 64), 64)
	if err != nil {
		panic(err)
	}
	return p
}

// Pair classifies a single (interval, feature) pair.  It returns false if no
// rule matches.
func Pair(iv coverage.Interval, f gff.Feature) (Record, bool) {
	cs, ce, rs, re := iv.Start, iv.End, f.Start, f.End
	for _, r := range rules {
		if !r.match(cs, ce, rs, re) {
			continue
		}
		rec := Record{Interval: iv, RefID: f.ID, Type: r.typ, Len: r.length(cs, ce, rs, re), Pcnt: 100}
		if r.proportional {
			rec.Pcnt = percent(rec.Len, iv.Len())
		}
		return rec, true
	}
	return Record{}, false
}
