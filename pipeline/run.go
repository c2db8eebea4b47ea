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

// Package pipeline ties depth parsing, coverage assembly and overlap
// classification together into the covoverlap command.
package pipeline

import (
	"context"
	"fmt"
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/covoverlap/coverage"
	"github.com/grailbio/covoverlap/encoding/depth"
	"github.com/grailbio/covoverlap/encoding/gff"
	"github.com/grailbio/covoverlap/interval"
	"github.com/grailbio/covoverlap/overlap"
)

// Summary describes a completed run.
type Summary struct {
	// OutPath is the GFF that was written.
	OutPath string
	// Records and Retained count depth records read and records that passed
	// the mask and the per-base depth filter.
	Records, Retained int
	// Intervals is the number of coverage features emitted.
	Intervals int
	// Classified is set when a reference annotation was supplied; Tally is
	// only meaningful then.
	Classified bool
	Tally      overlap.Tally
}

// maskedSource drops depth records outside a position mask.
type maskedSource struct {
	src     coverage.Source
	mask    *interval.BEDUnion
	dropped int
}

func (m *maskedSource) Scan(rec *depth.Record) bool {
	for m.src.Scan(rec) {
		if m.mask.ContainsByName(rec.Seq, interval.PosType(rec.Pos-1)) {
			return true
		}
		m.dropped++
	}
	return false
}

func (m *maskedSource) Err() error { return m.src.Err() }

// loadMask builds the position mask requested by opts, or returns nil if
// none was requested.
func loadMask(ctx context.Context, opts *Opts) (*interval.BEDUnion, error) {
	switch {
	case opts.BEDPath != "":
		u, err := interval.NewBEDUnionFromPath(ctx, opts.BEDPath, interval.NewBEDOpts{Invert: opts.InvertBED, OneBasedInput: opts.BEDOneBased})
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("load BED %s", opts.BEDPath), err)
		}
		return &u, nil
	case opts.Region != "":
		entry, err := interval.ParseRegionString(opts.Region)
		if err != nil {
			return nil, errors.E(errors.Invalid, err)
		}
		u, err := interval.NewBEDUnionFromEntries([]interval.Entry{entry}, interval.NewBEDOpts{})
		if err != nil {
			return nil, errors.E(errors.Invalid, err)
		}
		return &u, nil
	}
	return nil, nil
}

// loadReference reads the reference annotation.  A missing file is reported
// before any output is created.
func loadReference(ctx context.Context, opts *Opts) (gff.Reference, error) {
	if _, err := file.Stat(ctx, opts.GFFPath); err != nil {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("reference annotation %s", opts.GFFPath), err)
	}
	ref, _, err := gff.ReadReference(ctx, opts.GFFPath, opts.TypeFilter)
	if err != nil {
		return nil, errors.E(fmt.Sprintf("read reference annotation %s", opts.GFFPath), err)
	}
	return ref, nil
}

// Run reads the depth table, assembles coverage features and writes them to
// opts.OutPath().  If opts.GFFPath is set, each feature is first classified
// against the reference annotation.  On error, no output file is left
// behind.
func Run(ctx context.Context, opts *Opts) (summary Summary, err error) {
	if err = opts.Validate(); err != nil {
		return
	}
	summary.OutPath = opts.OutPath()
	var ref gff.Reference
	if opts.GFFPath != "" {
		if ref, err = loadReference(ctx, opts); err != nil {
			return
		}
		summary.Classified = true
	}
	mask, err := loadMask(ctx, opts)
	if err != nil {
		return
	}
	in, err := depth.Open(ctx, opts.DepthPath)
	if err != nil {
		err = errors.E(fmt.Sprintf("open depth table %s", opts.DepthPath), err)
		return
	}
	defer func() {
		if e := in.Close(); e != nil && err == nil {
			err = e
		}
	}()
	var src coverage.Source = in
	var masked *maskedSource
	if mask != nil {
		masked = &maskedSource{src: in, mask: mask}
		src = masked
	}

	out, err := createOutput(ctx, summary.OutPath, opts.Bgzip, opts.Parallelism)
	if err != nil {
		return
	}
	defer out.close(ctx, &err)

	asm := coverage.NewAssembler(opts.CoverageOpts())
	if ref == nil {
		err = streamIntervals(src, asm, out)
	} else {
		summary.Tally, err = classifyIntervals(src, asm, ref, out, opts.Parallelism)
	}
	if err != nil {
		return
	}
	summary.Records = asm.Stats.Records
	summary.Retained = asm.Stats.Retained
	summary.Intervals = asm.Stats.Kept
	if masked != nil {
		summary.Records += masked.dropped
		log.Printf("%d depth record(s) outside the mask were skipped.", masked.dropped)
	}
	log.Printf("Coverage features recorded: %d from %d depth record(s).", summary.Intervals, summary.Records)
	if summary.Classified {
		log.Printf("Overlaps classified: %d record(s).", summary.Tally.Total())
	}
	return
}

// streamIntervals writes each interval as soon as it is sealed.
func streamIntervals(src coverage.Source, asm *coverage.Assembler, out *outputFile) error {
	var rec depth.Record
	for src.Scan(&rec) {
		if iv, ok := asm.Add(rec); ok {
			if err := out.writeInterval(iv); err != nil {
				return err
			}
		}
	}
	if err := src.Err(); err != nil {
		return errors.E(errors.Invalid, "read depth table", err)
	}
	if iv, ok := asm.Flush(); ok {
		return out.writeInterval(iv)
	}
	return nil
}

// seqJob is a run of consecutive intervals on one sequence.
type seqJob struct {
	ivs   []coverage.Interval
	recs  []overlap.Record
	tally overlap.Tally
}

// splitBySeq partitions ivs into maximal runs sharing a sequence name.
func splitBySeq(ivs []coverage.Interval) []seqJob {
	var jobs []seqJob
	for start := 0; start < len(ivs); {
		end := start + 1
		for end < len(ivs) && ivs[end].Seq == ivs[start].Seq {
			end++
		}
		jobs = append(jobs, seqJob{ivs: ivs[start:end]})
		start = end
	}
	return jobs
}

// classifyIntervals assembles all intervals, classifies them with up to
// parallelism sequences in flight, and writes the records in stream order.
func classifyIntervals(src coverage.Source, asm *coverage.Assembler, ref gff.Reference, out *outputFile, parallelism int) (overlap.Tally, error) {
	var (
		ivs []coverage.Interval
		rec depth.Record
	)
	for src.Scan(&rec) {
		if iv, ok := asm.Add(rec); ok {
			ivs = append(ivs, iv)
		}
	}
	if err := src.Err(); err != nil {
		return overlap.Tally{}, errors.E(errors.Invalid, "read depth table", err)
	}
	if iv, ok := asm.Flush(); ok {
		ivs = append(ivs, iv)
	}

	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	c := overlap.NewClassifier(ref)
	jobs := splitBySeq(ivs)
	err := traverse.Limit(parallelism).Each(len(jobs), func(i int) error {
		jobs[i].recs, jobs[i].tally = c.ClassifyAll(jobs[i].ivs)
		return nil
	})
	if err != nil {
		return overlap.Tally{}, err
	}

	var tally overlap.Tally
	for _, job := range jobs {
		for _, r := range job.recs {
			if err := out.writeRecord(r); err != nil {
				return overlap.Tally{}, err
			}
		}
		tally.Merge(job.tally)
	}
	return tally, nil
}
