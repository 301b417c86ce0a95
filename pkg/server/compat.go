package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/comptaline/as400-ai-backend/pkg/ledger"
	"github.com/comptaline/as400-ai-backend/pkg/store"
)

var (
	accountNumberRe = regexp.MustCompile(`^\d{6}$`)
	entryDateRe     = regexp.MustCompile(`^\d{2}/\d{2}/\d{2}$`)
)

type pagedBody struct {
	Items    []store.Row `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

func pageParams(r *http.Request, defaultSize int) (page, size int) {
	page, size = 1, defaultSize
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil && v > 0 && v <= 500 {
		size = v
	}
	return page, size
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r, 50)
	res, err := s.store.Select(r.Context(), store.SelectQuery{
		Table:     "accounts",
		Order:     []store.Order{{Column: "account_number"}},
		Limit:     size,
		Offset:    (page - 1) * size,
		WithCount: true,
	})
	if err != nil {
		s.storeError(w, "Failed to fetch accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, pagedBody{Items: res.Rows, Total: res.Total, Page: page, PageSize: size})
}

type accountPayload struct {
	AccountNumber string `json:"account_number"`
	Label         string `json:"label"`
	UserID        string `json:"user_id"`
}

func (p accountPayload) validate() error {
	if !accountNumberRe.MatchString(p.AccountNumber) {
		return fmt.Errorf("account_number must be exactly 6 digits")
	}
	if strings.TrimSpace(p.Label) == "" {
		return fmt.Errorf("label is required")
	}
	return nil
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var p accountPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Failed to create account", Message: "invalid JSON body"})
		return
	}
	if err := p.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Failed to create account", Message: err.Error()})
		return
	}
	row := store.Row{"account_number": p.AccountNumber, "label": strings.TrimSpace(p.Label)}
	if p.UserID != "" {
		row["user_id"] = p.UserID
	}
	rows, err := s.store.Insert(r.Context(), "accounts", []store.Row{row})
	if err != nil {
		s.storeError(w, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, first(rows))
}

func (s *Server) handleListJournals(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.Select(r.Context(), store.SelectQuery{
		Table: "journals",
		Order: []store.Order{{Column: "code"}},
	})
	if err != nil {
		s.storeError(w, "Failed to fetch journals", err)
		return
	}
	writeJSON(w, http.StatusOK, res.Rows)
}

type journalPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (p journalPayload) validate() error {
	if n := utf8.RuneCountInString(p.Code); n < 2 || n > 3 {
		return fmt.Errorf("code must be 2 to 3 characters")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func (s *Server) handleCreateJournal(w http.ResponseWriter, r *http.Request) {
	var p journalPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Failed to create journal", Message: "invalid JSON body"})
		return
	}
	if err := p.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Failed to create journal", Message: err.Error()})
		return
	}
	rows, err := s.store.Insert(r.Context(), "journals", []store.Row{{
		"code": p.Code,
		"name": strings.TrimSpace(p.Name),
	}})
	if err != nil {
		s.storeError(w, "Failed to create journal", err)
		return
	}
	writeJSON(w, http.StatusCreated, first(rows))
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r, 100)
	q := store.SelectQuery{
		Table:     "journal_entries",
		Order:     []store.Order{{Column: "created_at", Descending: true}},
		Limit:     size,
		Offset:    (page - 1) * size,
		WithCount: true,
	}
	if status := r.URL.Query().Get("status"); status != "" {
		if status != "draft" && status != "posted" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Failed to fetch entries", Message: "status must be draft or posted"})
			return
		}
		q.Filters = map[string]store.Filter{"status": store.Eq(status)}
	}
	res, err := s.store.Select(r.Context(), q)
	if err != nil {
		s.storeError(w, "Failed to fetch entries", err)
		return
	}
	writeJSON(w, http.StatusOK, pagedBody{Items: res.Rows, Total: res.Total, Page: page, PageSize: size})
}

type entryPayload struct {
	CompanyID  string  `json:"company_id"`
	JournalID  string  `json:"journal_id"`
	BatchID    string  `json:"batch_id"`
	Compte     string  `json:"compte"`
	S          string  `json:"s"`
	Montant    float64 `json:"montant"`
	Libelle    string  `json:"libelle"`
	Date       string  `json:"date"`
	Status     string  `json:"status"`
	LetterCode string  `json:"letter_code"`
}

func (p entryPayload) validate() error {
	if p.CompanyID == "" {
		return fmt.Errorf("company_id is required")
	}
	if _, err := uuid.Parse(p.CompanyID); err != nil {
		return fmt.Errorf("company_id must be a valid uuid")
	}
	if !accountNumberRe.MatchString(p.Compte) {
		return fmt.Errorf("compte must be exactly 6 digits")
	}
	if p.S != "D" && p.S != "C" {
		return fmt.Errorf("s must be D or C")
	}
	if p.Montant <= 0 {
		return fmt.Errorf("montant must be positive")
	}
	if strings.TrimSpace(p.Libelle) == "" {
		return fmt.Errorf("libelle is required")
	}
	if p.BatchID == "" {
		return fmt.Errorf("batch_id is required")
	}
	if !entryDateRe.MatchString(p.Date) {
		return fmt.Errorf("date must use the DD/MM/YY format")
	}
	if p.Status != "" && p.Status != "draft" && p.Status != "posted" {
		return fmt.Errorf("status must be draft or posted")
	}
	return nil
}

func (p entryPayload) toRow() store.Row {
	status := p.Status
	if status == "" {
		status = "draft"
	}
	row := store.Row{
		"company_id": p.CompanyID,
		"compte":     p.Compte,
		"s":          p.S,
		"montant":    p.Montant,
		"libelle":    strings.TrimSpace(p.Libelle),
		"batch_id":   p.BatchID,
		"date":       p.Date,
		"status":     status,
	}
	if p.JournalID != "" {
		row["journal_id"] = p.JournalID
	}
	if p.LetterCode != "" {
		row["letter_code"] = p.LetterCode
	}
	return row
}

// handleCreateEntries accepts a single entry object or an array of entries,
// mirroring batch imports from the desktop client.
func (s *Server) handleCreateEntries(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Failed to create entries", Message: "unreadable body"})
		return
	}
	var payloads []entryPayload
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(body, &payloads)
	} else {
		var one entryPayload
		if err = json.Unmarshal(body, &one); err == nil {
			payloads = []entryPayload{one}
		}
	}
	if err != nil || len(payloads) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Failed to create entries", Message: "invalid JSON body"})
		return
	}

	rows := make([]store.Row, 0, len(payloads))
	for i, p := range payloads {
		if err := p.validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{
				Error:   "Failed to create entries",
				Message: fmt.Sprintf("entry %d: %v", i+1, err),
			})
			return
		}
		rows = append(rows, p.toRow())
	}

	created, err := s.store.Insert(r.Context(), "journal_entries", rows)
	if err != nil {
		s.storeError(w, "Failed to create entries", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func reportRange(r *http.Request) (ledger.DateRange, error) {
	rng := ledger.DateRange{
		Start: r.URL.Query().Get("startDate"),
		End:   r.URL.Query().Get("endDate"),
	}
	if rng.Start != "" && !entryDateRe.MatchString(rng.Start) {
		return rng, fmt.Errorf("startDate must use the DD/MM/YY format")
	}
	if rng.End != "" && !entryDateRe.MatchString(rng.End) {
		return rng, fmt.Errorf("endDate must use the DD/MM/YY format")
	}
	return rng, nil
}

func (s *Server) handleBalanceReport(w http.ResponseWriter, r *http.Request) {
	rng, err := reportRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Failed to build balance", Message: err.Error()})
		return
	}
	rows, err := ledger.BalanceReport(r.Context(), s.store, rng)
	if err != nil {
		s.storeError(w, "Failed to build balance", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleGrandLivre(w http.ResponseWriter, r *http.Request) {
	rng, err := reportRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Failed to build grand livre", Message: err.Error()})
		return
	}
	compte := r.URL.Query().Get("compte")
	if compte != "" && !accountNumberRe.MatchString(compte) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Failed to build grand livre", Message: "compte must be exactly 6 digits"})
		return
	}
	rows, err := ledger.GrandLivre(r.Context(), s.store, compte, rng)
	if err != nil {
		s.storeError(w, "Failed to build grand livre", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleFEC(w http.ResponseWriter, r *http.Request) {
	rng, err := reportRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Failed to build FEC export", Message: err.Error()})
		return
	}
	lines, err := ledger.FECReport(r.Context(), s.store, rng)
	if err != nil {
		s.storeError(w, "Failed to build FEC export", err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// storeError hides store failure details from clients while keeping them in
// the server log.
func (s *Server) storeError(w http.ResponseWriter, label string, err error) {
	s.logger.Error(label, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: label})
}

func first(rows []store.Row) store.Row {
	if len(rows) == 0 {
		return store.Row{}
	}
	return rows[0]
}
