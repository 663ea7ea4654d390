package count

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

func TestParsePredicate(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"N_jets >= 2", false},
		{"met_pt < 50.5", false},
		{"channel == mu", false},
		{`channel == "mu"`, false},
		{"passed_trigger == true", false},
		{"N_jets", true},
		{"N_jets >= ", true},
		{"N_jets ~ 2", true},
		{"a b c d", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParsePredicate(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParsePredicate(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

// selectionRecord builds a 5-row batch covering every selectable type.
func selectionRecord(t *testing.T) arrow.Record {
	t.Helper()
	sc := arrow.NewSchema([]arrow.Field{
		{Name: "n_jets", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "met_pt", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "channel", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "passed", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), sc)
	defer b.Release()

	b.Field(0).(*array.Int64Builder).AppendValues([]int64{0, 1, 2, 3, 4}, nil)
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{10, 20, 30, 40, 50}, nil)
	b.Field(2).(*array.StringBuilder).AppendValues([]string{"mu", "el", "mu", "mu", "el"}, nil)
	b.Field(3).(*array.BooleanBuilder).AppendValues([]bool{true, false, true, false, true}, nil)
	return b.NewRecord()
}

func TestCountMatches(t *testing.T) {
	rec := selectionRecord(t)
	defer rec.Release()

	tests := []struct {
		expr string
		want int64
	}{
		{"n_jets >= 2", 3},
		{"n_jets == 0", 1},
		{"n_jets != 0", 4},
		{"n_jets < 2", 2},
		{"met_pt > 25", 3},
		{"met_pt <= 30", 3},
		{"channel == mu", 3},
		{"channel != mu", 2},
		{"passed == true", 3},
		{"passed != true", 2},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := ParsePredicate(tt.expr)
			if err != nil {
				t.Fatalf("ParsePredicate() error = %v", err)
			}
			got, err := p.CountMatches(rec)
			if err != nil {
				t.Fatalf("CountMatches() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CountMatches(%q) = %d, want %d", tt.expr, got, tt.want)
			}
		})
	}
}

func TestCountMatches_NullsNeverMatch(t *testing.T) {
	sc := arrow.NewSchema([]arrow.Field{
		{Name: "n_jets", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), sc)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 0, 3}, []bool{true, false, true})
	rec := b.NewRecord()
	defer rec.Release()

	p, err := ParsePredicate("n_jets >= 0")
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.CountMatches(rec)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Errorf("CountMatches() = %d, want 2 (null row excluded)", got)
	}
}

func TestCountMatches_Errors(t *testing.T) {
	rec := selectionRecord(t)
	defer rec.Release()

	tests := []struct {
		name string
		expr string
	}{
		{"unknown column", "nope == 1"},
		{"string literal on numeric column", "n_jets == mu"},
		{"ordering on bool column", "passed < true"},
		{"numeric literal on bool column", "passed == 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePredicate(tt.expr)
			if err != nil {
				t.Fatalf("ParsePredicate() error = %v", err)
			}
			if _, err := p.CountMatches(rec); err == nil {
				t.Errorf("CountMatches(%q) should fail", tt.expr)
			}
		})
	}
}
