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
package overlap

import (
	"github.com/grailbio/covoverlap/coverage"
	"github.com/grailbio/covoverlap/encoding/gff"
)

// Classifier classifies coverage intervals against a fully loaded Reference.
// The Reference must not be modified while the Classifier is in use; a
// Classifier may then be used from multiple goroutines.
type Classifier struct {
	Ref gff.Reference
}

// NewClassifier creates a Classifier over ref.
func NewClassifier(ref gff.Reference) *Classifier {
	return &Classifier{Ref: ref}
}

// Classify appends the records for iv to dst and returns the extended slice
// together with the tally of the appended records.  One record is appended
// per matching feature on iv's sequence, in reference order.  If no feature
// matches, including when the sequence has no features at all, exactly one
// Null record is appended.
func (c *Classifier) Classify(dst []Record, iv coverage.Interval) ([]Record, Tally) {
	var tally Tally
	for _, f := range c.Ref[iv.Seq] {
		if rec, ok := Pair(iv, f); ok {
			dst = append(dst, rec)
			tally.Add(rec.Type)
		}
	}
	if tally.Total() == 0 {
		dst = append(dst, Record{Interval: iv, Type: Null})
		tally.Add(Null)
	}
	return dst, tally
}

// ClassifyAll classifies ivs in order.
func (c *Classifier) ClassifyAll(ivs []coverage.Interval) ([]Record, Tally) {
	var (
		recs  []Record
		tally Tally
	)
	for _, iv := range ivs {
		var t Tally
		recs, t = c.Classify(recs, iv)
		tally.Merge(t)
	}
	return recs, tally
}
