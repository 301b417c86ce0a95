package store

import (
	"context"
	"testing"
	"time"
)

func TestDecodeEntries(t *testing.T) {
	created := time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)
	companyUUID := [16]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}

	entries, err := DecodeEntries([]Row{{
		"id":          "e-1",
		"compte":      "411000",
		"s":           "D",
		"montant":     1250.75,
		"libelle":     "Facture 2025-041",
		"batch_id":    "B7",
		"status":      "posted",
		"letter_code": nil,
		"date":        "15/05/25",
		"company_id":  companyUUID,
		"created_at":  created,
	}})
	if err != nil {
		t.Fatalf("DecodeEntries: %v", err)
	}
	e := entries[0]
	if e.Account != "411000" || e.Side != "D" || e.Amount != 1250.75 {
		t.Fatalf("entry = %+v", e)
	}
	if e.LetterCode != "" {
		t.Fatalf("null letter_code decoded as %q", e.LetterCode)
	}
	if e.CompanyID != "01020304-0506-0708-090a-0b0c0d0e0f10" {
		t.Fatalf("company_id = %q", e.CompanyID)
	}
	if !e.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v", e.CreatedAt)
	}
}

func TestDecodeEntriesFromJSONTypes(t *testing.T) {
	// PostgREST rows arrive with string timestamps and float64 numbers.
	entries, err := DecodeEntries([]Row{{
		"compte":     "601000",
		"s":          "C",
		"montant":    float64(42),
		"created_at": "2025-05-01T10:30:00Z",
	}})
	if err != nil {
		t.Fatalf("DecodeEntries: %v", err)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Fatal("string created_at not parsed")
	}
}

func TestEntriesHelper(t *testing.T) {
	m := NewMemoryStore()
	m.Seed("journal_entries", []Row{
		{"compte": "411000", "s": "D", "montant": 10.0},
		{"compte": "601000", "s": "C", "montant": 10.0},
	})

	entries, err := Entries(context.Background(), m, SelectQuery{
		Table:   "journal_entries",
		Filters: map[string]Filter{"compte": Eq("411000")},
	})
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Side != "D" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestCheckQueryValidation(t *testing.T) {
	valid := SelectQuery{Table: "journal_entries", Columns: []string{"compte"}}
	if err := checkQuery(valid); err != nil {
		t.Fatalf("checkQuery: %v", err)
	}

	bad := []SelectQuery{
		{Table: ""},
		{Table: "journal entries"},
		{Table: "entries;--"},
		{Table: "accounts", Columns: []string{"label, secret"}},
		{Table: "accounts", Order: []Order{{Column: "label; DROP"}}},
		{Table: "accounts", Filters: map[string]Filter{"label": {Op: "regex", Value: "x"}}},
	}
	for _, q := range bad {
		if err := checkQuery(q); err == nil {
			t.Errorf("checkQuery accepted %+v", q)
		}
	}
}
