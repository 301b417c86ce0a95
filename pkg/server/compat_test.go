package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/comptaline/as400-ai-backend/pkg/models"
	"github.com/comptaline/as400-ai-backend/pkg/store"
)

func newCompatServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return newTestServer(t, models.NewDummy("anthropic-claude"), st), st
}

func TestCompatCreateAndListAccounts(t *testing.T) {
	srv, _ := newCompatServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/compat/accounts",
		`{"account_number":"411000","label":"Clients"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)
	if created["account_number"] != "411000" || created["id"] == nil {
		t.Fatalf("created = %v", created)
	}

	doJSON(t, srv, http.MethodPost, "/api/compat/accounts", `{"account_number":"401000","label":"Fournisseurs"}`)

	rec = doJSON(t, srv, http.MethodGet, "/api/compat/accounts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["total"] != float64(2) || body["page"] != float64(1) {
		t.Fatalf("body = %v", body)
	}
	items := body["items"].([]any)
	first := items[0].(map[string]any)
	if first["account_number"] != "401000" {
		t.Fatalf("not sorted by account number: %v", items)
	}
}

func TestCompatAccountValidation(t *testing.T) {
	srv, _ := newCompatServer(t)
	for _, body := range []string{
		`{"account_number":"41100","label":"Clients"}`,
		`{"account_number":"411000","label":"  "}`,
		`{"account_number":"41100A","label":"Clients"}`,
		`not json`,
	} {
		rec := doJSON(t, srv, http.MethodPost, "/api/compat/accounts", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestCompatJournals(t *testing.T) {
	srv, _ := newCompatServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/compat/journals", `{"code":"VE","name":"Ventes"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}

	// Codes are length-checked only, so lowercase or digits pass.
	rec = doJSON(t, srv, http.MethodPost, "/api/compat/journals", `{"code":"od1","name":"Divers"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("lowercase code: status = %d (%s)", rec.Code, rec.Body.String())
	}

	for _, body := range []string{
		`{"code":"v","name":"Ventes"}`,
		`{"code":"VENTE","name":"Ventes"}`,
		`{"code":"VE","name":""}`,
	} {
		rec := doJSON(t, srv, http.MethodPost, "/api/compat/journals", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/compat/journals", "")
	var journals []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &journals); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(journals) != 2 || journals[0]["code"] != "VE" {
		t.Fatalf("journals = %v", journals)
	}
}

const testCompanyID = "c7b1e9a2-4f3d-4e8a-9b6a-2f1d3c4b5a60"

func TestCompatCreateEntriesSingleAndBatch(t *testing.T) {
	srv, st := newCompatServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/compat/entries",
		`{"company_id":"`+testCompanyID+`","compte":"411000","s":"D","montant":100,"libelle":"Facture","batch_id":"B1","date":"15/01/25"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/compat/entries",
		`[{"company_id":"`+testCompanyID+`","compte":"411000","s":"D","montant":50,"libelle":"a","batch_id":"B2","date":"16/01/25"},
		  {"company_id":"`+testCompanyID+`","compte":"707000","s":"C","montant":50,"libelle":"b","batch_id":"B2","date":"16/01/25","status":"posted"}]`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}

	res, err := st.Select(context.Background(), store.SelectQuery{Table: "journal_entries"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(res.Rows) != 3 {
		t.Fatalf("stored %d entries", len(res.Rows))
	}
	// Status defaults to draft when omitted.
	drafts, _ := st.Select(context.Background(), store.SelectQuery{
		Table:   "journal_entries",
		Filters: map[string]store.Filter{"status": store.Eq("draft")},
	})
	if len(drafts.Rows) != 2 {
		t.Fatalf("drafts = %v", drafts.Rows)
	}
}

func TestCompatEntryValidation(t *testing.T) {
	srv, _ := newCompatServer(t)
	valid := `"company_id":"` + testCompanyID + `","date":"15/01/25"`
	for _, body := range []string{
		`{` + valid + `,"compte":"41100","s":"D","montant":100,"libelle":"x","batch_id":"B1"}`,
		`{` + valid + `,"compte":"411000","s":"X","montant":100,"libelle":"x","batch_id":"B1"}`,
		`{` + valid + `,"compte":"411000","s":"D","montant":0,"libelle":"x","batch_id":"B1"}`,
		`{` + valid + `,"compte":"411000","s":"D","montant":-5,"libelle":"x","batch_id":"B1"}`,
		`{` + valid + `,"compte":"411000","s":"D","montant":100,"libelle":"","batch_id":"B1"}`,
		`{` + valid + `,"compte":"411000","s":"D","montant":100,"libelle":"x","batch_id":""}`,
		`{` + valid + `,"compte":"411000","s":"D","montant":100,"libelle":"x","batch_id":"B1","status":"archived"}`,
		`{"company_id":"` + testCompanyID + `","compte":"411000","s":"D","montant":100,"libelle":"x","batch_id":"B1","date":"2025-01-15"}`,
		`{"compte":"411000","s":"D","montant":100,"libelle":"vente","batch_id":"B1"}`,
		`{"date":"15/01/25","compte":"411000","s":"D","montant":100,"libelle":"x","batch_id":"B1"}`,
		`{"company_id":"not-a-uuid","date":"15/01/25","compte":"411000","s":"D","montant":100,"libelle":"x","batch_id":"B1"}`,
		`{"company_id":"` + testCompanyID + `","compte":"411000","s":"D","montant":100,"libelle":"x","batch_id":"B1"}`,
		`[]`,
	} {
		rec := doJSON(t, srv, http.MethodPost, "/api/compat/entries", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestCompatListEntriesPagingAndStatus(t *testing.T) {
	srv, st := newCompatServer(t)
	var rows []store.Row
	for i := 0; i < 5; i++ {
		status := "draft"
		if i%2 == 0 {
			status = "posted"
		}
		rows = append(rows, store.Row{"compte": "411000", "s": "D", "montant": 10.0, "status": status})
	}
	st.Seed("journal_entries", rows)

	rec := doJSON(t, srv, http.MethodGet, "/api/compat/entries?page=1&pageSize=2", "")
	body := decodeBody(t, rec)
	if body["total"] != float64(5) || len(body["items"].([]any)) != 2 {
		t.Fatalf("body = %v", body)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/compat/entries?status=posted", "")
	body = decodeBody(t, rec)
	if body["total"] != float64(3) {
		t.Fatalf("body = %v", body)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/compat/entries?status=deleted", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func seedReportData(st *store.MemoryStore) {
	st.Seed("accounts", []store.Row{
		{"account_number": "411000", "label": "Clients"},
	})
	st.Seed("journals", []store.Row{
		{"id": "j-ve", "code": "VE", "name": "Ventes"},
	})
	st.Seed("journal_entries", []store.Row{
		{"compte": "411000", "s": "D", "montant": 500.0, "libelle": "Facture", "batch_id": "B1",
			"status": "posted", "date": "10/01/25", "journal_id": "j-ve"},
		{"compte": "411000", "s": "C", "montant": 100.0, "libelle": "Avoir", "batch_id": "B2",
			"status": "posted", "date": "20/01/25"},
	})
}

func TestCompatBalanceReport(t *testing.T) {
	srv, st := newCompatServer(t)
	seedReportData(st)

	rec := doJSON(t, srv, http.MethodGet, "/api/compat/reports/balance?startDate=01/01/25&endDate=31/01/25", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	var rows []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(rows) != 1 || rows[0]["solde"] != float64(400) {
		t.Fatalf("rows = %v", rows)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/compat/reports/balance?startDate=2025-01-01&endDate=2025-01-31", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for ISO dates", rec.Code)
	}
}

func TestCompatGrandLivre(t *testing.T) {
	srv, st := newCompatServer(t)
	seedReportData(st)

	rec := doJSON(t, srv, http.MethodGet, "/api/compat/reports/grand-livre?compte=411000", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var rows []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %v", rows)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/compat/reports/grand-livre?compte=41", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for bad compte", rec.Code)
	}
}

func TestCompatFEC(t *testing.T) {
	srv, st := newCompatServer(t)
	seedReportData(st)

	rec := doJSON(t, srv, http.MethodGet, "/api/compat/reports/fec", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var lines []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &lines); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0]["JournalCode"] != "VE" || lines[0]["Idevise"] != "EUR" {
		t.Fatalf("line = %v", lines[0])
	}
}
