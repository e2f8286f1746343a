package variables

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPool_Substitute(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		strict  bool
		text    string
		want    string
		wantErr string
	}{
		{
			name:   "braced placeholder",
			values: map[string]string{"id": "42"},
			text:   "select * from t where id = ${id}",
			want:   "select * from t where id = 42",
		},
		{
			name:   "bare placeholder",
			values: map[string]string{"tab": "person"},
			text:   "select * from $tab",
			want:   "select * from person",
		},
		{
			name:   "multiple occurrences",
			values: map[string]string{"x": "1"},
			text:   "select ${x}, ${x} + $x",
			want:   "select 1, 1 + 1",
		},
		{
			name:   "unresolved passes through",
			values: map[string]string{"a": "1"},
			text:   "select ${a}, ${missing}",
			want:   "select 1, ${missing}",
		},
		{
			name:    "strict fails on unresolved",
			values:  map[string]string{"a": "1"},
			strict:  true,
			text:    "select ${a}, ${missing}, $gone",
			wantErr: "undefined variable(s): missing, gone",
		},
		{
			name:   "no placeholders unchanged",
			values: map[string]string{"a": "1"},
			text:   "select 'a dollar costs $1'",
			want:   "select 'a dollar costs $1'",
		},
		{
			name: "empty pool unchanged",
			text: "select ${anything}",
			want: "select ${anything}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewPool()
			pool.SetStrict(tt.strict)
			for k, v := range tt.values {
				pool.Set(k, v)
			}
			got, err := pool.Substitute(tt.text)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Substitute() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Substitute() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Substitute() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPool_SubstituteIdempotent(t *testing.T) {
	pool := NewPool()
	pool.Set("name", "o'brien")

	once, err := pool.Substitute("select * from t where name = '${name}'")
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	twice, err := pool.Substitute(once)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if once != twice {
		t.Errorf("substitution not idempotent: %q vs %q", once, twice)
	}
}

func TestPool_NamesAndRemove(t *testing.T) {
	pool := NewPool()
	pool.Set("b", "2")
	pool.Set("a", "1")
	pool.Set("c", "3")
	pool.Remove("b")

	want := []string{"a", "c"}
	if diff := cmp.Diff(want, pool.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if pool.Len() != 2 {
		t.Errorf("Len() = %d, want 2", pool.Len())
	}
}

func TestGetPool_Scoping(t *testing.T) {
	t.Cleanup(func() {
		RemovePool("scope-a")
		RemovePool("scope-b")
	})

	GetPool("scope-a").Set("x", "1")
	if _, ok := GetPool("scope-b").Get("x"); ok {
		t.Error("value leaked across pool scopes")
	}
	if v, ok := GetPool("scope-a").Get("x"); !ok || v != "1" {
		t.Errorf("scope-a lost its value: %q, %v", v, ok)
	}

	RemovePool("scope-a")
	if _, ok := GetPool("scope-a").Get("x"); ok {
		t.Error("RemovePool did not discard the pool")
	}
}
