package tools

import (
	"context"
	"fmt"
	"math"
	"regexp"

	"github.com/comptaline/as400-ai-backend/pkg/agent"
	"github.com/comptaline/as400-ai-backend/pkg/store"
)

var accountNumberRe = regexp.MustCompile(`^\d{6}$`)

// AccountBalance sums the signed amounts for one 6-digit account: debit
// entries add, credit entries subtract.
type AccountBalance struct {
	store store.Store
}

// NewAccountBalance builds the tool over a store.
func NewAccountBalance(s store.Store) *AccountBalance {
	return &AccountBalance{store: s}
}

func (b *AccountBalance) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "analyze_account_balance",
		Description: "Calculate the balance of a specific account.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"company_id": map[string]any{
					"type":        "string",
					"description": "Restrict to one company.",
				},
				"account_number": map[string]any{
					"type":        "string",
					"pattern":     "^\\d{6}$",
					"description": "The 6-digit account number, e.g. 411000.",
				},
				"status_filter": map[string]any{
					"type": "string",
					"enum": []string{"all", "draft", "posted"},
				},
			},
			"required": []string{"account_number"},
		},
	}
}

type balanceResult struct {
	Success    bool    `json:"success"`
	Account    string  `json:"account"`
	Debit      float64 `json:"debit"`
	Credit     float64 `json:"credit"`
	Balance    float64 `json:"balance"`
	EntryCount int     `json:"entry_count"`
}

func (b *AccountBalance) Invoke(ctx context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	account, err := stringArg(req.Arguments, "account_number", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	if !accountNumberRe.MatchString(account) {
		return agent.ToolResponse{}, fmt.Errorf("account_number must be 6 digits, got %q", account)
	}

	query := store.SelectQuery{
		Table:   "journal_entries",
		Columns: []string{"s", "montant", "status"},
		Filters: map[string]store.Filter{"compte": store.Eq(account)},
	}
	if companyID, err := stringArg(req.Arguments, "company_id", false); err != nil {
		return agent.ToolResponse{}, err
	} else if companyID != "" {
		query.Filters["company_id"] = store.Eq(companyID)
	}
	if status, err := stringArg(req.Arguments, "status_filter", false); err != nil {
		return agent.ToolResponse{}, err
	} else if status != "" && status != "all" {
		if status != "draft" && status != "posted" {
			return agent.ToolResponse{}, fmt.Errorf("status_filter must be all, draft or posted")
		}
		query.Filters["status"] = store.Eq(status)
	}

	entries, err := store.Entries(ctx, b.store, query)
	if err != nil {
		return agent.ToolResponse{}, err
	}

	var debit, credit float64
	for _, entry := range entries {
		switch entry.Side {
		case "D":
			debit += entry.Amount
		case "C":
			credit += entry.Amount
		}
	}

	debit = round2(debit)
	credit = round2(credit)
	return agent.ToolResponse{Payload: balanceResult{
		Success:    true,
		Account:    account,
		Debit:      debit,
		Credit:     credit,
		Balance:    round2(debit - credit),
		EntryCount: len(entries),
	}}, nil
}

// round2 applies half-up rounding to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
