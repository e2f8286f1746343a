package script

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sqlrun/sqlrun/pkg/delimiter"
)

func TestParser_Split(t *testing.T) {
	tests := []struct {
		name   string
		delim  delimiter.Delimiter
		script string
		want   []string
	}{
		{
			name:   "two statements",
			delim:  delimiter.Standard,
			script: "select 1;\nselect 2;",
			want:   []string{"select 1", "select 2"},
		},
		{
			name:   "missing final delimiter",
			delim:  delimiter.Standard,
			script: "select 1;\nselect 2",
			want:   []string{"select 1", "select 2"},
		},
		{
			name:   "empty statements dropped",
			delim:  delimiter.Standard,
			script: ";;\nselect 1;\n;;",
			want:   []string{"select 1"},
		},
		{
			name:   "semicolon in string literal",
			delim:  delimiter.Standard,
			script: "insert into t values ('a;b');\nselect 1;",
			want:   []string{"insert into t values ('a;b')", "select 1"},
		},
		{
			name:   "doubled quote escape",
			delim:  delimiter.Standard,
			script: "select 'it''s; fine';\nselect 2;",
			want:   []string{"select 'it''s; fine'", "select 2"},
		},
		{
			name:   "semicolon in quoted identifier",
			delim:  delimiter.Standard,
			script: `select "a;b" from t;`,
			want:   []string{`select "a;b" from t`},
		},
		{
			name:   "semicolon in line comment",
			delim:  delimiter.Standard,
			script: "select 1 -- not here;\n;select 2;",
			want:   []string{"select 1 -- not here;", "select 2"},
		},
		{
			name:   "semicolon in block comment",
			delim:  delimiter.Standard,
			script: "select 1 /* a;b */;select 2;",
			want:   []string{"select 1 /* a;b */", "select 2"},
		},
		{
			name:   "slash delimiter keeps internal semicolons",
			delim:  delimiter.Parse("/"),
			script: "begin\n  insert into t values (1);\n  insert into t values (2);\nend;\n/\nselect 1\n/",
			want:   []string{"begin\n  insert into t values (1);\n  insert into t values (2);\nend;", "select 1"},
		},
		{
			name:   "go delimiter case insensitive",
			delim:  delimiter.Parse("GO"),
			script: "select 1\ngo\nselect 2\nGO",
			want:   []string{"select 1", "select 2"},
		},
		{
			name:   "custom multi character delimiter",
			delim:  delimiter.New("@@", false),
			script: "create procedure p()\nbegin\n select 1;\nend\n@@\nselect 2 @@",
			want:   []string{"create procedure p()\nbegin\n select 1;\nend", "select 2"},
		},
		{
			name:   "empty script",
			delim:  delimiter.Standard,
			script: "   \n\t",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewParser(tt.delim).Split(tt.script)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Split() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParser_SetDelimiter(t *testing.T) {
	p := NewParser(delimiter.Standard)
	if got := p.Split("select 1\nGO"); len(got) != 1 {
		t.Fatalf("expected one statement before switch, got %d", len(got))
	}
	p.SetDelimiter(delimiter.Parse("GO"))
	got := p.Split("select 1\nGO\nselect 2\nGO")
	want := []string{"select 1", "select 2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Split() after SetDelimiter mismatch (-want +got):\n%s", diff)
	}
}
