package count

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Op is a comparison operator in a selection expression.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Predicate is a selection over one column: "column op literal".
// It evaluates against numeric, string and bool columns; null values
// never match.
type Predicate struct {
	Column string
	Op     Op

	raw     string
	num     float64
	isNum   bool
	boolean bool
	isBool  bool
}

// ParsePredicate parses a selection expression of the form
// "column op literal", e.g. "N_jets >= 2" or `channel == "mu"`.
func ParsePredicate(expr string) (*Predicate, error) {
	fields := strings.Fields(expr)
	if len(fields) != 3 {
		return nil, fmt.Errorf("invalid selection %q (want: column op value)", expr)
	}

	op := Op(fields[1])
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
	default:
		return nil, fmt.Errorf("invalid selection operator %q", fields[1])
	}

	p := &Predicate{Column: fields[0], Op: op, raw: strings.Trim(fields[2], `"'`)}
	if n, err := strconv.ParseFloat(fields[2], 64); err == nil {
		p.num = n
		p.isNum = true
	} else if b, err := strconv.ParseBool(fields[2]); err == nil {
		p.boolean = b
		p.isBool = true
	}
	return p, nil
}

func (p *Predicate) String() string {
	return fmt.Sprintf("%s %s %s", p.Column, p.Op, p.raw)
}

// CountMatches returns how many rows of the batch pass the selection.
func (p *Predicate) CountMatches(rec arrow.Record) (int64, error) {
	idxs := rec.Schema().FieldIndices(p.Column)
	if len(idxs) != 1 {
		return 0, fmt.Errorf("selection column %q not found", p.Column)
	}
	col := rec.Column(idxs[0])

	var n int64
	switch c := col.(type) {
	case *array.Int32:
		if !p.isNum {
			return 0, fmt.Errorf("selection column %q is numeric, literal %q is not", p.Column, p.raw)
		}
		for i := 0; i < c.Len(); i++ {
			if !c.IsNull(i) && cmpNum(float64(c.Value(i)), p.num, p.Op) {
				n++
			}
		}
	case *array.Int64:
		if !p.isNum {
			return 0, fmt.Errorf("selection column %q is numeric, literal %q is not", p.Column, p.raw)
		}
		for i := 0; i < c.Len(); i++ {
			if !c.IsNull(i) && cmpNum(float64(c.Value(i)), p.num, p.Op) {
				n++
			}
		}
	case *array.Float32:
		if !p.isNum {
			return 0, fmt.Errorf("selection column %q is numeric, literal %q is not", p.Column, p.raw)
		}
		for i := 0; i < c.Len(); i++ {
			if !c.IsNull(i) && cmpNum(float64(c.Value(i)), p.num, p.Op) {
				n++
			}
		}
	case *array.Float64:
		if !p.isNum {
			return 0, fmt.Errorf("selection column %q is numeric, literal %q is not", p.Column, p.raw)
		}
		for i := 0; i < c.Len(); i++ {
			if !c.IsNull(i) && cmpNum(c.Value(i), p.num, p.Op) {
				n++
			}
		}
	case *array.String:
		for i := 0; i < c.Len(); i++ {
			if !c.IsNull(i) && cmpStr(c.Value(i), p.raw, p.Op) {
				n++
			}
		}
	case *array.Boolean:
		if !p.isBool {
			return 0, fmt.Errorf("selection column %q is bool, literal %q is not", p.Column, p.raw)
		}
		if p.Op != OpEq && p.Op != OpNe {
			return 0, fmt.Errorf("selection operator %s not supported for bool column %q", p.Op, p.Column)
		}
		for i := 0; i < c.Len(); i++ {
			if !c.IsNull(i) && ((c.Value(i) == p.boolean) == (p.Op == OpEq)) {
				n++
			}
		}
	default:
		return 0, fmt.Errorf("selection not supported on column %q of type %s", p.Column, col.DataType())
	}
	return n, nil
}

func cmpNum(v, lit float64, op Op) bool {
	switch op {
	case OpEq:
		return v == lit
	case OpNe:
		return v != lit
	case OpLt:
		return v < lit
	case OpLe:
		return v <= lit
	case OpGt:
		return v > lit
	case OpGe:
		return v >= lit
	}
	return false
}

func cmpStr(v, lit string, op Op) bool {
	c := strings.Compare(v, lit)
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	}
	return false
}
