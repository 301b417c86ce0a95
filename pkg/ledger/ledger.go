// Package ledger builds the accounting reports served by the compat module:
// the per-account balance, the grand livre and the FEC export. Only posted
// entries are reported.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/comptaline/as400-ai-backend/pkg/store"
)

// entryDateLayout is the DD/MM/YY format used by the journal_entries.date
// column.
const entryDateLayout = "02/01/06"

// DateRange bounds a report by entry date. Empty bounds mean unbounded. The
// date column stores DD/MM/YY strings, so ranges are resolved here after
// parsing rather than pushed to the store as lexicographic comparisons.
type DateRange struct {
	Start string
	End   string
}

func (r DateRange) empty() bool { return r.Start == "" || r.End == "" }

func (r DateRange) contains(date string) bool {
	if r.empty() {
		return true
	}
	d, err := time.Parse(entryDateLayout, date)
	if err != nil {
		return false
	}
	start, err := time.Parse(entryDateLayout, r.Start)
	if err != nil {
		return false
	}
	end, err := time.Parse(entryDateLayout, r.End)
	if err != nil {
		return false
	}
	return !d.Before(start) && !d.After(end)
}

// BalanceRow is one account line of the balance report.
type BalanceRow struct {
	Compte string  `json:"compte"`
	Label  string  `json:"label"`
	Debit  float64 `json:"debit"`
	Credit float64 `json:"credit"`
	Solde  float64 `json:"solde"`
}

// BalanceReport aggregates posted entries per account and joins account
// labels, sorted by account number.
func BalanceReport(ctx context.Context, s store.Store, r DateRange) ([]BalanceRow, error) {
	entries, err := store.Entries(ctx, s, store.SelectQuery{
		Table:   "journal_entries",
		Columns: []string{"compte", "montant", "s", "date"},
		Filters: map[string]store.Filter{"status": store.Eq("posted")},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch posted entries: %w", err)
	}

	type totals struct{ debit, credit float64 }
	perAccount := map[string]*totals{}
	for _, entry := range entries {
		if !r.contains(entry.Date) {
			continue
		}
		t, ok := perAccount[entry.Account]
		if !ok {
			t = &totals{}
			perAccount[entry.Account] = t
		}
		if entry.Side == "D" {
			t.debit += entry.Amount
		} else {
			t.credit += entry.Amount
		}
	}

	accounts := make([]string, 0, len(perAccount))
	for account := range perAccount {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	labels, err := accountLabels(ctx, s, accounts)
	if err != nil {
		return nil, err
	}

	rows := make([]BalanceRow, 0, len(accounts))
	for _, account := range accounts {
		t := perAccount[account]
		label, ok := labels[account]
		if !ok {
			label = "Compte inconnu"
		}
		rows = append(rows, BalanceRow{
			Compte: account,
			Label:  label,
			Debit:  t.debit,
			Credit: t.credit,
			Solde:  t.debit - t.credit,
		})
	}
	return rows, nil
}

// GrandLivre returns posted entries ordered by date then creation time,
// optionally restricted to one account and a date range.
func GrandLivre(ctx context.Context, s store.Store, compte string, r DateRange) ([]store.Row, error) {
	filters := map[string]store.Filter{"status": store.Eq("posted")}
	if compte != "" {
		filters["compte"] = store.Eq(compte)
	}
	res, err := s.Select(ctx, store.SelectQuery{
		Table:   "journal_entries",
		Filters: filters,
		Order: []store.Order{
			{Column: "date"},
			{Column: "created_at"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch grand livre: %w", err)
	}

	rows := make([]store.Row, 0, len(res.Rows))
	for _, row := range res.Rows {
		if r.contains(asString(row["date"])) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// FECLine is one line of the Fichier des Écritures Comptables export, keyed
// with the official column names.
type FECLine struct {
	JournalCode   string `json:"JournalCode"`
	JournalLib    string `json:"JournalLib"`
	EcritureNum   string `json:"EcritureNum"`
	EcritureDate  string `json:"EcritureDate"`
	CompteNum     string `json:"CompteNum"`
	CompteLib     string `json:"CompteLib"`
	CompAuxNum    string `json:"CompAuxNum"`
	CompAuxLib    string `json:"CompAuxLib"`
	PieceRef      string `json:"PieceRef"`
	PieceDate     string `json:"PieceDate"`
	EcritureLib   string `json:"EcritureLib"`
	Debit         string `json:"Debit"`
	Credit        string `json:"Credit"`
	EcritureLet   string `json:"EcritureLet"`
	DateLet       string `json:"DateLet"`
	ValidDate     string `json:"ValidDate"`
	Montantdevise string `json:"Montantdevise"`
	Idevise       string `json:"Idevise"`
}

type journalInfo struct {
	code string
	name string
}

// FECReport renders posted entries as FEC lines with journal and account
// labels joined in.
func FECReport(ctx context.Context, s store.Store, r DateRange) ([]FECLine, error) {
	entries, err := store.Entries(ctx, s, store.SelectQuery{
		Table:   "journal_entries",
		Filters: map[string]store.Filter{"status": store.Eq("posted")},
		Order: []store.Order{
			{Column: "date"},
			{Column: "batch_id"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch posted entries: %w", err)
	}

	var kept []store.JournalEntry
	accountSet := map[string]bool{}
	for _, entry := range entries {
		if !r.contains(entry.Date) {
			continue
		}
		kept = append(kept, entry)
		accountSet[entry.Account] = true
	}

	accounts := make([]string, 0, len(accountSet))
	for account := range accountSet {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	labels, err := accountLabels(ctx, s, accounts)
	if err != nil {
		return nil, err
	}
	journals, err := journalIndex(ctx, s)
	if err != nil {
		return nil, err
	}

	lines := make([]FECLine, 0, len(kept))
	for _, entry := range kept {
		journal, ok := journals[entry.JournalID]
		if !ok {
			journal = journalInfo{code: "OD", name: "Opérations Diverses"}
		}
		debit, credit := "0.00", "0.00"
		if entry.Side == "D" {
			debit = fmt.Sprintf("%.2f", entry.Amount)
		} else {
			credit = fmt.Sprintf("%.2f", entry.Amount)
		}
		validDate := entry.PostedAt
		if validDate == "" {
			validDate = entry.Date
		}
		lines = append(lines, FECLine{
			JournalCode:   journal.code,
			JournalLib:    journal.name,
			EcritureNum:   entry.BatchID,
			EcritureDate:  entry.Date,
			CompteNum:     entry.Account,
			CompteLib:     labels[entry.Account],
			PieceDate:     entry.Date,
			EcritureLib:   entry.Label,
			Debit:         debit,
			Credit:        credit,
			EcritureLet:   entry.LetterCode,
			ValidDate:     validDate,
			Montantdevise: "0.00",
			Idevise:       "EUR",
		})
	}
	return lines, nil
}

func accountLabels(ctx context.Context, s store.Store, accounts []string) (map[string]string, error) {
	if len(accounts) == 0 {
		return map[string]string{}, nil
	}
	res, err := s.Select(ctx, store.SelectQuery{
		Table:   "accounts",
		Columns: []string{"account_number", "label"},
		Filters: map[string]store.Filter{
			"account_number": {Op: store.OpIn, Value: accounts},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch account labels: %w", err)
	}

	labels := make(map[string]string, len(res.Rows))
	for _, row := range res.Rows {
		labels[asString(row["account_number"])] = asString(row["label"])
	}
	return labels, nil
}

func journalIndex(ctx context.Context, s store.Store) (map[string]journalInfo, error) {
	res, err := s.Select(ctx, store.SelectQuery{
		Table:   "journals",
		Columns: []string{"id", "code", "name"},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch journals: %w", err)
	}

	index := make(map[string]journalInfo, len(res.Rows))
	for _, row := range res.Rows {
		index[asString(row["id"])] = journalInfo{
			code: asString(row["code"]),
			name: asString(row["name"]),
		}
	}
	return index, nil
}

// asString renders loosely typed identifiers: pgx returns uuid columns as
// [16]byte, PostgREST as strings.
func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case [16]byte:
		return uuid.UUID(s).String()
	default:
		return fmt.Sprint(v)
	}
}
