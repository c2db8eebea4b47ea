package gff

import (
	"io"
	"strings"

	"github.com/grailbio/base/tsv"
)

// Attr is a single key=value pair of the GFF attribute column.
type Attr struct {
	Key, Value string
}

// Attrs is an ordered attribute list.  It is rendered as "k1=v1;k2=v2;",
// with a trailing semicolon after every pair.
type Attrs []Attr

// String renders the attribute column.
func (a Attrs) String() string {
	var b strings.Builder
	for _, kv := range a {
		b.WriteString(kv.Key)
		b.WriteByte('=')
		b.WriteString(kv.Value)
		b.WriteByte(';')
	}
	return b.String()
}

// Writer writes GFF feature lines.  The source, score and phase columns are
// always ".", and every feature is written on the '+' strand, since coverage
// features carry no strand information.
type Writer struct {
	w *tsv.Writer
	// Type is the value of the feature type column.
	Type string
}

// DefaultType is the feature type written for coverage features.
const DefaultType = "cDNA"

// NewWriter constructs a Writer that writes lines to w.  Flush must be called
// once all features are written.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: tsv.NewWriter(w), Type: DefaultType}
}

// Write writes one feature line.  start and end are written as-is.
func (w *Writer) Write(seq string, start, end int, attrs Attrs) error {
	w.w.WriteString(seq)
	w.w.WriteByte('.')
	w.w.WriteString(w.Type)
	w.w.WriteInt64(int64(start))
	w.w.WriteInt64(int64(end))
	w.w.WriteByte('.')
	w.w.WriteByte('+')
	w.w.WriteByte('.')
	w.w.WriteString(attrs.String())
	return w.w.EndLine()
}

// Flush flushes buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
