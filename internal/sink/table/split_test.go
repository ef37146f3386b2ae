package table

import (
	"reflect"
	"testing"
)

func TestSplitter_Split(t *testing.T) {
	t.Parallel()

	plain := Splitter{Delim: ',', Null: "null"}
	quoted := Splitter{Delim: ',', Enclose: '"', Null: "null"}
	escaped := Splitter{Delim: '|', Escape: '\\', Null: "NULL"}

	v := func(s string) Field { return Field{Value: s} }
	null := Field{Value: "null", Null: true}

	cases := []struct {
		name string
		sp   Splitter
		in   string
		want []Field
	}{
		{"plain", plain, "2,Czech Republic,Brno", []Field{v("2"), v("Czech Republic"), v("Brno")}},
		{"null literal", plain, "1,null,x", []Field{v("1"), null, v("x")}},
		{"empty fields", plain, ",,", []Field{v(""), v(""), v("")}},
		{"single field", plain, "only", []Field{v("only")}},
		{"quoted delimiter", quoted, `1,"Brno, CZ",x`, []Field{v("1"), v("Brno, CZ"), v("x")}},
		{"doubled quote", quoted, `"say ""hi""",2`, []Field{v(`say "hi"`), v("2")}},
		{"quoted null is text", quoted, `"null",null`, []Field{v("null"), null}},
		{"quote mid-field is literal", quoted, `a"b,c`, []Field{v(`a"b`), v("c")}},
		{"escaped delimiter", escaped, `a\|b|c`, []Field{v("a|b"), v("c")}},
		{"escaped backslash", escaped, `a\\|NULL`, []Field{v(`a\`), {Value: "NULL", Null: true}}},
		{"escaped null is text", escaped, `\NULL|x`, []Field{v("NULL"), v("x")}},
		{"tab delimiter", Splitter{Delim: '\t', Null: "null"}, "1\tň\t", []Field{v("1"), v("ň"), v("")}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := tc.sp.Split(tc.in)
			if err != nil {
				t.Fatalf("Split(%q): %v", tc.in, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Split(%q) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestSplitter_Errors(t *testing.T) {
	t.Parallel()

	sp := Splitter{Delim: ',', Enclose: '"', Escape: '\\', Null: "null"}
	for _, in := range []string{`"open,2`, `abc\`} {
		if _, err := sp.Split(in); err == nil {
			t.Errorf("Split(%q) succeeded, want error", in)
		}
	}
}
