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
	"context"
	"io"
	"runtime"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/covoverlap/coverage"
	"github.com/grailbio/covoverlap/encoding/gff"
	"github.com/grailbio/covoverlap/overlap"
	"github.com/grailbio/hts/bgzf"
)

// coverageAttrs are the attributes shared by every output line of iv.
func coverageAttrs(iv coverage.Interval) gff.Attrs {
	return gff.Attrs{
		{Key: "mean", Value: strconv.Itoa(iv.MeanDepth)},
		{Key: "median", Value: strconv.Itoa(iv.MedianDepth)},
		{Key: "gaps", Value: strconv.Itoa(iv.Gaps)},
	}
}

// intervalAttrs renders an unclassified coverage feature:
//   ID=<seq>_<start0>;mean=..;median=..;gaps=..;
func intervalAttrs(iv coverage.Interval) gff.Attrs {
	return append(gff.Attrs{{Key: "ID", Value: iv.Name()}}, coverageAttrs(iv)...)
}

// recordAttrs renders a classified coverage feature.  Null records keep the
// interval's own ID:
//   ID=<seq>_<start0>;mean=..;median=..;gaps=..;type=null;
// while matched records take the reference feature's ID and point back to
// the interval:
//   ID=<ref ID>;Parent=<seq>_<start0>;mean=..;median=..;gaps=..;type=..;len=..;pcnt=..;
func recordAttrs(rec overlap.Record) gff.Attrs {
	if rec.Type == overlap.Null {
		return append(intervalAttrs(rec.Interval), gff.Attr{Key: "type", Value: rec.Type.String()})
	}
	attrs := gff.Attrs{{Key: "ID", Value: rec.RefID}, {Key: "Parent", Value: rec.Interval.Name()}}
	attrs = append(attrs, coverageAttrs(rec.Interval)...)
	return append(attrs,
		gff.Attr{Key: "type", Value: rec.Type.String()},
		gff.Attr{Key: "len", Value: strconv.Itoa(rec.Len)},
		gff.Attr{Key: "pcnt", Value: strconv.FormatFloat(rec.Pcnt, 'f', 1, 64)})
}

// outputFile is the GFF destination of a run.
type outputFile struct {
	path string
	f    file.File
	bgz  *bgzf.Writer
	w    *gff.Writer
}

func createOutput(ctx context.Context, path string, bgzip bool, parallelism int) (*outputFile, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	out := &outputFile{path: path, f: f}
	var w io.Writer = f.Writer(ctx)
	if bgzip {
		if parallelism <= 0 {
			parallelism = runtime.NumCPU()
		}
		out.bgz = bgzf.NewWriter(w, parallelism)
		w = out.bgz
	}
	out.w = gff.NewWriter(w)
	return out, nil
}

func (o *outputFile) writeInterval(iv coverage.Interval) error {
	return o.w.Write(iv.Seq, iv.Start, iv.End, intervalAttrs(iv))
}

func (o *outputFile) writeRecord(rec overlap.Record) error {
	return o.w.Write(rec.Interval.Seq, rec.Interval.Start, rec.Interval.End, recordAttrs(rec))
}

// close flushes and closes the output.  If the run failed (*err != nil), the
// partial output is removed instead.
func (o *outputFile) close(ctx context.Context, err *error) {
	if *err != nil {
		_ = o.f.Close(ctx)
		if e := file.Remove(ctx, o.path); e != nil {
			log.Error.Printf("remove %s: %v", o.path, e)
		}
		return
	}
	*err = o.w.Flush()
	if o.bgz != nil {
		if e := o.bgz.Close(); e != nil && *err == nil {
			*err = e
		}
	}
	if e := o.f.Close(ctx); e != nil && *err == nil {
		*err = e
	}
}
