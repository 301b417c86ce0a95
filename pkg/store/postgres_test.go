package store

import (
	"testing"
)

func TestBuildSelectSQL(t *testing.T) {
	sql, args, err := buildSelectSQL(SelectQuery{
		Table:   "journal_entries",
		Columns: []string{"compte", "montant"},
		Filters: map[string]Filter{
			"status": Eq("posted"),
			"compte": {Op: OpLike, Value: "411%"},
		},
		Order:  []Order{{Column: "date"}, {Column: "created_at", Descending: true}},
		Limit:  50,
		Offset: 100,
	})
	if err != nil {
		t.Fatalf("buildSelectSQL: %v", err)
	}

	// Filter columns are emitted in sorted order.
	want := `SELECT "compte", "montant" FROM "journal_entries" WHERE "compte" LIKE $1 AND "status" = $2 ORDER BY "date", "created_at" DESC LIMIT 50 OFFSET 100`
	if sql != want {
		t.Fatalf("sql = %s\nwant %s", sql, want)
	}
	if len(args) != 2 || args[0] != "411%" || args[1] != "posted" {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildSelectSQLStar(t *testing.T) {
	sql, args, err := buildSelectSQL(SelectQuery{Table: "accounts"})
	if err != nil {
		t.Fatalf("buildSelectSQL: %v", err)
	}
	if sql != `SELECT * FROM "accounts"` {
		t.Fatalf("sql = %s", sql)
	}
	if len(args) != 0 {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildWhereOperators(t *testing.T) {
	where, args, err := buildWhere(map[string]Filter{
		"letter_code": {Op: OpIs, Value: nil},
		"montant":     {Op: OpGt, Value: 10000},
		"status":      {Op: OpIn, Value: []string{"draft", "posted"}},
	}, 0)
	if err != nil {
		t.Fatalf("buildWhere: %v", err)
	}
	want := ` WHERE "letter_code" IS NULL AND "montant" > $1 AND "status" = ANY($2)`
	if where != want {
		t.Fatalf("where = %s\nwant %s", where, want)
	}
	if len(args) != 2 {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildWhereRejectsIsNonNull(t *testing.T) {
	if _, _, err := buildWhere(map[string]Filter{
		"status": {Op: OpIs, Value: "posted"},
	}, 0); err == nil {
		t.Fatal("expected rejection of non-null is filter")
	}
}

func TestBuildCountSQL(t *testing.T) {
	sql, args, err := buildCountSQL(SelectQuery{
		Table:   "journal_entries",
		Filters: map[string]Filter{"status": Eq("draft")},
	})
	if err != nil {
		t.Fatalf("buildCountSQL: %v", err)
	}
	if sql != `SELECT count(*) FROM "journal_entries" WHERE "status" = $1` {
		t.Fatalf("sql = %s", sql)
	}
	if len(args) != 1 {
		t.Fatalf("args = %v", args)
	}
}
