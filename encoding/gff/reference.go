// Package gff reads reference features (e.g. gene models) from GFF
// annotations, and writes annotated coverage features back out as GFF.
package gff

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	biogff "github.com/biogo/biogo/io/featio/gff"
	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// Feature is a reference interval read from a GFF annotation.  Start and End
// are the 1-based, closed coordinates exactly as written in columns 4 and 5.
type Feature struct {
	Seq        string
	Start, End int
	ID         string
}

// Reference holds reference features keyed by sequence name.  Within each
// sequence, features are kept in the order they appear in the annotation.
type Reference map[string][]Feature

// Add appends f to its sequence's feature list.
func (r Reference) Add(f Feature) {
	r[f.Seq] = append(r[f.Seq], f)
}

// Len returns the total number of features across all sequences.
func (r Reference) Len() int {
	n := 0
	for _, feats := range r {
		n += len(feats)
	}
	return n
}

// LoadStats counts the lines seen while loading a Reference.
type LoadStats struct {
	// Lines is the number of feature lines read, including unparsable ones.
	Lines int
	// Filtered counts lines whose type column did not contain the type filter.
	Filtered int
	// Skipped counts lines that did not parse as GFF features or had no
	// leading ID attribute.
	Skipped int
	// Features is the number of features retained.
	Features int
}

// featureID returns the identifier of a reference feature: the value of an
// "ID" attribute that opens the attribute column, as in "ID=gene_1;Name=a".
// An ID attribute anywhere else does not count.  Both the GFF3 "ID=gene_1"
// and the GFF2 "ID gene_1" spellings are accepted.
func featureID(attrs biogff.Attributes) (string, bool) {
	if len(attrs) == 0 {
		return "", false
	}
	first := attrs[0]
	var id string
	switch {
	case first.Tag == "ID":
		id = first.Value
	case strings.HasPrefix(first.Tag, "ID="):
		id = first.Tag[len("ID="):]
		if first.Value != "" {
			id += " " + first.Value
		}
	default:
		return "", false
	}
	if i := strings.IndexByte(id, ';'); i >= 0 {
		id = id[:i]
	}
	id = strings.TrimSpace(id)
	return id, id != ""
}

// NewReference reads GFF features from r.  Only features whose type column
// contains typeFilter are considered; an empty typeFilter accepts all types.
// Lines that do not parse as GFF features, or that lack a leading ID
// attribute, are skipped; they do not cause an error.
func NewReference(r io.Reader, typeFilter string) (Reference, LoadStats, error) {
	var (
		ref   = Reference{}
		stats LoadStats
	)
	gr := biogff.NewReader(r)
	for {
		feat, err := gr.Read()
		if err == io.EOF {
			break
		}
		stats.Lines++
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, stats, errors.Wrap(err, "gff: couldn't read annotation")
			}
			log.Debug.Printf("gff: skipping line: %v", err)
			stats.Skipped++
			continue
		}
		f := feat.(*biogff.Feature)
		if typeFilter != "" && !strings.Contains(f.Feature, typeFilter) {
			stats.Filtered++
			continue
		}
		id, ok := featureID(f.FeatAttributes)
		if !ok {
			log.Debug.Printf("gff: skipping %s feature at %s:%d without a leading ID", f.Feature, f.SeqName, f.FeatStart+1)
			stats.Skipped++
			continue
		}
		// biogo reports a 0-based, half-open start.
		ref.Add(Feature{Seq: f.SeqName, Start: f.FeatStart + 1, End: f.FeatEnd, ID: id})
		stats.Features++
	}
	return ref, stats, nil
}

// ReadReference is a wrapper for NewReference that takes a path instead of
// an io.Reader.  Compressed annotations are decompressed transparently.
func ReadReference(ctx context.Context, path, typeFilter string) (ref Reference, stats LoadStats, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, in, &err)
	r, _ := compress.NewReader(in.Reader(ctx))
	defer func() {
		if e := r.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if ref, stats, err = NewReference(r, typeFilter); err != nil {
		err = errors.Wrapf(err, "%s", path)
		return
	}
	log.Printf("GFF %s: read %d lines, kept %d features on %d sequences (%d filtered by type, %d skipped)",
		path, stats.Lines, stats.Features, len(ref), stats.Filtered, stats.Skipped)
	return
}
