package core

import (
	"reflect"
	"testing"
)

func TestParseOperations(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []string
		wantErr bool
	}{
		{
			name:  "empty",
			input: nil,
			want:  []string{},
		},
		{
			name:  "reordered to fixed order",
			input: []string{OpRemoveDuplicates, OpTrimWhitespace, OpRemoveNulls},
			want:  []string{OpTrimWhitespace, OpRemoveNulls, OpRemoveDuplicates},
		},
		{
			name:  "duplicates collapse",
			input: []string{OpRemoveNulls, OpRemoveNulls},
			want:  []string{OpRemoveNulls},
		},
		{
			name:  "surrounding space ignored",
			input: []string{" trim_whitespace "},
			want:  []string{OpTrimWhitespace},
		},
		{
			name:    "unknown name",
			input:   []string{OpTrimWhitespace, "reverse_rows"},
			wantErr: true,
		},
		{
			name:    "names are case sensitive",
			input:   []string{"Trim_Whitespace"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := ParseOperations(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOperations() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			got := make([]string, len(ops))
			for i, op := range ops {
				got[i] = op.Name
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseOperations() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOperations_Catalogue(t *testing.T) {
	ops := Operations()
	want := []string{
		OpStandardizeCase, OpRemoveSpecialChars, OpTrimWhitespace,
		OpRemoveEmptyColumns, OpRemoveNulls, OpRemoveDuplicates,
	}
	if len(ops) != len(want) {
		t.Fatalf("Operations() returned %d entries, want %d", len(ops), len(want))
	}
	for i, op := range ops {
		if op.Name != want[i] {
			t.Errorf("Operations()[%d] = %s, want %s", i, op.Name, want[i])
		}
		if op.Label == "" || op.Description == "" {
			t.Errorf("%s is missing label or description", op.Name)
		}
	}

	// Callers get a copy.
	ops[0].Name = "changed"
	if Operations()[0].Name != OpStandardizeCase {
		t.Error("Operations() exposes the internal slice")
	}
}

func TestLabels(t *testing.T) {
	got := Labels([]string{OpTrimWhitespace, "bogus", OpRemoveDuplicates})
	want := []string{"Trim Whitespace", "Remove Duplicates"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Labels() = %v, want %v", got, want)
	}
}

func TestTrimWhitespace(t *testing.T) {
	ds := Dataset{
		Header: []string{"a", "b"},
		Rows:   [][]string{{"  x", "y\t"}, {"\n z \r\n", " w "}},
	}

	got, _, err := Clean(ds, []string{OpTrimWhitespace})
	if err != nil {
		t.Fatal(err)
	}

	want := [][]string{{"x", "y"}, {"z", "w"}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Errorf("rows = %q, want %q", got.Rows, want)
	}
}

func TestRemoveNulls(t *testing.T) {
	ds := Dataset{
		Header: []string{"a", "b"},
		Rows: [][]string{
			{"1", "2"},
			{"", "2"},
			{"3", "   "},
			{"4", "5"},
			{"null", "0"},
		},
	}

	got, stats, err := Clean(ds, []string{OpRemoveNulls})
	if err != nil {
		t.Fatal(err)
	}

	// Literal "null" and "0" are values, not empties.
	want := [][]string{{"1", "2"}, {"4", "5"}, {"null", "0"}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Errorf("rows = %v, want %v", got.Rows, want)
	}
	if stats.RowsRemoved() != 2 {
		t.Errorf("RowsRemoved = %d, want 2", stats.RowsRemoved())
	}
}

func TestRemoveDuplicates(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		want [][]string
	}{
		{
			name: "first occurrence wins",
			rows: [][]string{{"b", "1"}, {"a", "1"}, {"b", "1"}, {"c", "2"}, {"a", "1"}},
			want: [][]string{{"b", "1"}, {"a", "1"}, {"c", "2"}},
		},
		{
			name: "exact text comparison",
			rows: [][]string{{"a", "1"}, {"A", "1"}, {"a ", "1"}},
			want: [][]string{{"a", "1"}, {"A", "1"}, {"a ", "1"}},
		},
		{
			name: "cell boundaries matter",
			rows: [][]string{{"a:b", ""}, {"a", ":b"}, {"1:a", "b"}},
			want: [][]string{{"a:b", ""}, {"a", ":b"}, {"1:a", "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := Dataset{Header: []string{"k", "v"}, Rows: tt.rows}
			got, stats, err := Clean(ds, []string{OpRemoveDuplicates})
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got.Rows, tt.want) {
				t.Errorf("rows = %q, want %q", got.Rows, tt.want)
			}
			if stats.RowsAfter > stats.RowsBefore {
				t.Errorf("row count grew: %+v", stats)
			}
		})
	}
}

func TestStandardizeCase(t *testing.T) {
	ds := Dataset{
		Header: []string{"Name"},
		Rows:   [][]string{{"ALICE"}, {"Élan"}},
	}

	got, _, err := Clean(ds, []string{OpStandardizeCase})
	if err != nil {
		t.Fatal(err)
	}

	if got.Header[0] != "Name" {
		t.Errorf("header changed to %q", got.Header[0])
	}
	want := [][]string{{"alice"}, {"élan"}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Errorf("rows = %v, want %v", got.Rows, want)
	}
}

func TestRemoveSpecialChars(t *testing.T) {
	ds := Dataset{
		Header: []string{"v"},
		Rows:   [][]string{{"a-b_c!"}, {"($1,000.00)"}, {"café 42"}},
	}

	got, _, err := Clean(ds, []string{OpRemoveSpecialChars})
	if err != nil {
		t.Fatal(err)
	}

	want := [][]string{{"abc"}, {"100000"}, {"café 42"}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Errorf("rows = %v, want %v", got.Rows, want)
	}
}

func TestRemoveEmptyColumns(t *testing.T) {
	ds := Dataset{
		Header: []string{"a", "blank", "b", "spaces"},
		Rows: [][]string{
			{"1", "", "", " "},
			{"2", "", "x", ""},
		},
	}

	got, stats, err := Clean(ds, []string{OpRemoveEmptyColumns})
	if err != nil {
		t.Fatal(err)
	}

	if want := []string{"a", "b"}; !reflect.DeepEqual(got.Header, want) {
		t.Errorf("header = %v, want %v", got.Header, want)
	}
	if want := [][]string{{"1", ""}, {"2", "x"}}; !reflect.DeepEqual(got.Rows, want) {
		t.Errorf("rows = %v, want %v", got.Rows, want)
	}
	if stats.ColumnsRemoved() != 2 {
		t.Errorf("ColumnsRemoved = %d, want 2", stats.ColumnsRemoved())
	}
}
