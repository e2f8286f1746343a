package sqltext

import "testing"

func TestVerbAfterWith(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{name: "plain select", sql: "select 1", want: "SELECT"},
		{name: "with select", sql: "with cte as (select 1) select * from cte", want: "SELECT"},
		{name: "with delete", sql: "with old as (select id from t where ts < now()) delete from t where id in (select id from old)", want: "DELETE"},
		{name: "with insert", sql: "WITH src AS (SELECT 1 AS x) INSERT INTO t SELECT x FROM src", want: "INSERT"},
		{name: "with update", sql: "with c as (select 1) update t set x = 1", want: "UPDATE"},
		{name: "nested body verbs ignored", sql: "with c as (select 1 from (select 2) q) select * from c", want: "SELECT"},
		{name: "delete keyword inside string", sql: "with c as (select 'delete me') select * from c", want: "SELECT"},
		{name: "delete keyword in comment", sql: "with c as (select 1) -- delete later\nselect * from c", want: "SELECT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerbAfterWith(tt.sql); got != tt.want {
				t.Errorf("VerbAfterWith(%q) = %q, want %q", tt.sql, got, tt.want)
			}
		})
	}
}

func TestIsWhereLessDML(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want bool
	}{
		{name: "update without where", sql: "update person set name = 'x'", want: true},
		{name: "update with where", sql: "update person set name = 'x' where id = 1", want: false},
		{name: "delete without where", sql: "delete from person", want: true},
		{name: "delete with where", sql: "delete from person where id = 1", want: false},
		{name: "select never flagged", sql: "select * from person", want: false},
		{name: "insert never flagged", sql: "insert into person values (1)", want: false},
		{name: "where inside string literal", sql: "update t set note = 'where are you'", want: true},
		{name: "where in subselect only", sql: "delete from t using (select id from u where u.ok) s", want: true},
		{name: "with head delete without where", sql: "with c as (select 1) delete from t", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWhereLessDML(tt.sql); got != tt.want {
				t.Errorf("IsWhereLessDML(%q) = %v, want %v", tt.sql, got, tt.want)
			}
		})
	}
}
