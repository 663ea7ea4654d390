// Package schema describes the column layout of an ntuple file and
// decides whether two files can be concatenated into one output.
package schema

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Kind is the closed set of column types the tools handle.
// The analysis ntuple format only ever stores primitives, timestamps
// and (fixed or variable length) arrays of primitives.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindBool
	KindTimestamp
	KindList          // variable-length array of a primitive
	KindFixedSizeList // fixed-length array of a primitive
)

func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindTimestamp:
		return "timestamp"
	case KindList:
		return "list"
	case KindFixedSizeList:
		return "fixed_size_list"
	default:
		return "invalid"
	}
}

// Column is one named, typed branch of a dataset.
type Column struct {
	Name string
	Kind Kind
	// Elem is the element kind for list columns, KindInvalid otherwise.
	Elem Kind
	// Width is the fixed element count for fixed-size lists, 0 otherwise.
	Width int
}

// Descriptor is an immutable description of a dataset's column set.
// Source records which file it was read from for error reporting.
type Descriptor struct {
	Source  string
	Columns []Column
}

// MismatchError reports the first column on which two sources disagree.
type MismatchError struct {
	File   string // the file that does not match the first source
	Column string
	Reason string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in %s: column %q %s", e.File, e.Column, e.Reason)
}

// kindOf maps an Arrow type to our closed Kind set.
func kindOf(dt arrow.DataType) (kind, elem Kind, width int, err error) {
	switch t := dt.(type) {
	case *arrow.Int32Type:
		return KindInt32, KindInvalid, 0, nil
	case *arrow.Int64Type:
		return KindInt64, KindInvalid, 0, nil
	case *arrow.Float32Type:
		return KindFloat32, KindInvalid, 0, nil
	case *arrow.Float64Type:
		return KindFloat64, KindInvalid, 0, nil
	case *arrow.StringType:
		return KindString, KindInvalid, 0, nil
	case *arrow.BooleanType:
		return KindBool, KindInvalid, 0, nil
	case *arrow.TimestampType:
		return KindTimestamp, KindInvalid, 0, nil
	case *arrow.ListType:
		ek, _, _, err := kindOf(t.Elem())
		if err != nil {
			return KindInvalid, KindInvalid, 0, err
		}
		if ek == KindList || ek == KindFixedSizeList {
			return KindInvalid, KindInvalid, 0, fmt.Errorf("nested list columns are not supported")
		}
		return KindList, ek, 0, nil
	case *arrow.FixedSizeListType:
		ek, _, _, err := kindOf(t.Elem())
		if err != nil {
			return KindInvalid, KindInvalid, 0, err
		}
		if ek == KindList || ek == KindFixedSizeList {
			return KindInvalid, KindInvalid, 0, fmt.Errorf("nested list columns are not supported")
		}
		return KindFixedSizeList, ek, int(t.Len()), nil
	default:
		return KindInvalid, KindInvalid, 0, fmt.Errorf("unsupported column type %s", dt)
	}
}

// Describe builds a Descriptor from an Arrow schema.
// source is the file path the schema came from, used in error messages.
func Describe(source string, s *arrow.Schema) (*Descriptor, error) {
	cols := make([]Column, 0, s.NumFields())
	for _, f := range s.Fields() {
		kind, elem, width, err := kindOf(f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: column %q: %w", source, f.Name, err)
		}
		cols = append(cols, Column{Name: f.Name, Kind: kind, Elem: elem, Width: width})
	}
	return &Descriptor{Source: source, Columns: cols}, nil
}

// Column returns the named column and whether it exists.
func (d *Descriptor) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Compatible reports whether two descriptors have the same column set
// with identical kinds. Column order is ignored for matching.
func Compatible(a, b *Descriptor) bool {
	return match(a, b) == nil
}

// match returns nil if b carries exactly a's columns, otherwise a
// MismatchError attributed to b's source file.
func match(a, b *Descriptor) *MismatchError {
	if len(a.Columns) != len(b.Columns) {
		// Find a concrete column to name in the report.
		for _, c := range b.Columns {
			if _, ok := a.Column(c.Name); !ok {
				return &MismatchError{File: b.Source, Column: c.Name, Reason: "not present in " + a.Source}
			}
		}
		for _, c := range a.Columns {
			if _, ok := b.Column(c.Name); !ok {
				return &MismatchError{File: b.Source, Column: c.Name, Reason: "missing"}
			}
		}
		return &MismatchError{
			File:   b.Source,
			Column: b.Columns[0].Name,
			Reason: fmt.Sprintf("file has %d columns, want %d", len(b.Columns), len(a.Columns)),
		}
	}
	for _, want := range a.Columns {
		got, ok := b.Column(want.Name)
		if !ok {
			return &MismatchError{File: b.Source, Column: want.Name, Reason: "missing"}
		}
		if got.Kind != want.Kind || got.Elem != want.Elem || got.Width != want.Width {
			return &MismatchError{
				File:   b.Source,
				Column: want.Name,
				Reason: fmt.Sprintf("has type %s, want %s", typeLabel(got), typeLabel(want)),
			}
		}
	}
	for _, c := range b.Columns {
		if _, ok := a.Column(c.Name); !ok {
			return &MismatchError{File: b.Source, Column: c.Name, Reason: "not present in " + a.Source}
		}
	}
	return nil
}

func typeLabel(c Column) string {
	switch c.Kind {
	case KindList:
		return fmt.Sprintf("list<%s>", c.Elem)
	case KindFixedSizeList:
		return fmt.Sprintf("fixed_size_list<%s>[%d]", c.Elem, c.Width)
	default:
		return c.Kind.String()
	}
}

// Merge validates that every descriptor is pairwise compatible and
// returns the merged descriptor. Column order follows the first input,
// which determines the writer's target schema.
func Merge(descs []*Descriptor) (*Descriptor, error) {
	if len(descs) == 0 {
		return nil, fmt.Errorf("no schemas to merge")
	}
	first := descs[0]
	for _, d := range descs[1:] {
		if err := match(first, d); err != nil {
			return nil, err
		}
	}
	return first, nil
}
