package delimiter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		wantText       string
		wantSingleLine bool
	}{
		{name: "empty defaults to semicolon", input: "", wantText: ";"},
		{name: "semicolon", input: ";", wantText: ";"},
		{name: "slash is single line", input: "/", wantText: "/", wantSingleLine: true},
		{name: "go is single line", input: "GO", wantText: "GO", wantSingleLine: true},
		{name: "go matched case insensitively", input: "go", wantText: "GO", wantSingleLine: true},
		{name: "custom literal", input: "@@", wantText: "@@"},
		{name: "surrounding whitespace trimmed", input: "  / ", wantText: "/", wantSingleLine: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if got.Text() != tt.wantText {
				t.Errorf("Parse(%q).Text() = %q, want %q", tt.input, got.Text(), tt.wantText)
			}
			if got.IsSingleLine() != tt.wantSingleLine {
				t.Errorf("Parse(%q).IsSingleLine() = %v, want %v", tt.input, got.IsSingleLine(), tt.wantSingleLine)
			}
		})
	}
}

func TestDelimiter_Terminates(t *testing.T) {
	slash := Parse("/")
	goDelim := Parse("GO")

	tests := []struct {
		name  string
		delim Delimiter
		sql   string
		want  bool
	}{
		{name: "plain semicolon", delim: Standard, sql: "select 1;", want: true},
		{name: "no terminator", delim: Standard, sql: "select 1", want: false},
		{name: "trailing whitespace", delim: Standard, sql: "select 1;  \n", want: true},
		{name: "trailing line comment after delimiter", delim: Standard, sql: "select 1; -- done", want: true},
		{name: "comment only trailing line", delim: Standard, sql: "select 1;\n-- done\n", want: true},
		{name: "slash alone on last line", delim: slash, sql: "begin\n  null;\nend;\n/", want: true},
		{name: "slash embedded in expression", delim: slash, sql: "select 1/2 from dual", want: false},
		{name: "slash with surrounding spaces", delim: slash, sql: "select * from t\n  /  ", want: true},
		{name: "go alone on last line", delim: goDelim, sql: "select 1\nGO", want: true},
		{name: "go lowercase", delim: goDelim, sql: "select 1\ngo\n", want: true},
		{name: "go inside statement", delim: goDelim, sql: "select 'go' from t", want: false},
		{name: "custom delimiter", delim: Parse("@@"), sql: "create procedure p()\nbegin\nend\n@@", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.delim.Terminates(tt.sql); got != tt.want {
				t.Errorf("Terminates(%q) = %v, want %v", tt.sql, got, tt.want)
			}
		})
	}
}

func TestDelimiter_Strip(t *testing.T) {
	tests := []struct {
		name  string
		delim Delimiter
		sql   string
		want  string
	}{
		{name: "semicolon removed", delim: Standard, sql: "select 1;", want: "select 1"},
		{name: "unterminated text unchanged", delim: Standard, sql: "select 1", want: "select 1"},
		{name: "slash line removed", delim: Parse("/"), sql: "begin\nend;\n/", want: "begin\nend;"},
		{name: "go line removed", delim: Parse("GO"), sql: "select 1\nGO\n", want: "select 1"},
		{name: "slash with trailing comment line", delim: Parse("/"), sql: "select 1\n/\n-- done", want: "select 1"},
		{name: "slash with trailing blank and comment lines", delim: Parse("/"), sql: "begin\nend;\n/\n\n-- fin\n", want: "begin\nend;"},
		{name: "custom delimiter removed", delim: Parse("@@"), sql: "select 1 @@", want: "select 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.delim.Strip(tt.sql)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Strip() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDelimiter_Equality(t *testing.T) {
	if Parse(";") != Standard {
		t.Error("Parse(\";\") should equal Standard")
	}
	if Parse("/") == Parse("GO") {
		t.Error("slash and GO delimiters must not compare equal")
	}
	if New("/", true) != Parse("/") {
		t.Error("New and Parse disagree on the slash delimiter")
	}
	if New("/", false) == Parse("/") {
		t.Error("single-line mode must participate in equality")
	}
}
