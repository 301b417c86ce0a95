package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/comptaline/as400-ai-backend/pkg/agent"
	"github.com/comptaline/as400-ai-backend/pkg/store"
)

// Anomaly check identifiers, in the order they run.
const (
	CheckUnbalancedBatches = "unbalanced_batches"
	CheckDuplicateEntries  = "duplicate_entries"
	CheckUnusualAmounts    = "unusual_amounts"
	CheckMissingLettrage   = "missing_lettrage"
	CheckOldDrafts         = "old_drafts"
)

// CheckTypes lists every advertised check. duplicate_entries is declared for
// wire-schema parity but has no implementation yet; selecting it contributes
// nothing. See DESIGN.md.
var CheckTypes = []string{
	CheckUnbalancedBatches,
	CheckDuplicateEntries,
	CheckUnusualAmounts,
	CheckMissingLettrage,
	CheckOldDrafts,
}

// Detection thresholds.
const (
	balanceTolerance  = 0.01
	unusualAmountOver = 10000
	oldDraftAge       = 30 * 24 * time.Hour
	oldDraftSampleCap = 10
	unusualSampleCap  = 5
)

// Anomaly is one detected irregularity.
type Anomaly struct {
	Type        string         `json:"type"`
	Severity    string         `json:"severity"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details"`
}

// DetectAnomalies runs a selectable subset of independent checks. A fetch
// failure inside one check yields an empty contribution for that check, never
// a failure of the whole tool.
type DetectAnomalies struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// DetectAnomaliesOption customizes the tool.
type DetectAnomaliesOption func(*DetectAnomalies)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) DetectAnomaliesOption {
	return func(d *DetectAnomalies) { d.now = now }
}

// WithToolLogger sets the logger used to report degraded checks.
func WithToolLogger(logger *slog.Logger) DetectAnomaliesOption {
	return func(d *DetectAnomalies) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDetectAnomalies builds the tool over a store.
func NewDetectAnomalies(s store.Store, opts ...DetectAnomaliesOption) *DetectAnomalies {
	d := &DetectAnomalies{
		store:  s,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DetectAnomalies) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "detect_anomalies",
		Description: "Detect anomalies in accounting entries.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"company_id": map[string]any{
					"type":        "string",
					"description": "Restrict to one company.",
				},
				"check_types": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "string",
						"enum": CheckTypes,
					},
					"description": "Checks to run. Defaults to all.",
				},
			},
		},
	}
}

type anomalyResult struct {
	Success   bool           `json:"success"`
	Anomalies []Anomaly      `json:"anomalies"`
	Summary   anomalySummary `json:"summary"`
}

type anomalySummary struct {
	Total  int `json:"total_anomalies"`
	High   int `json:"high_severity"`
	Medium int `json:"medium_severity"`
	Low    int `json:"low_severity"`
}

func (d *DetectAnomalies) Invoke(ctx context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	checks, err := selectedChecks(req.Arguments["check_types"])
	if err != nil {
		return agent.ToolResponse{}, err
	}
	companyID, err := stringArg(req.Arguments, "company_id", false)
	if err != nil {
		return agent.ToolResponse{}, err
	}

	anomalies := []Anomaly{}
	for _, check := range checks {
		var found []Anomaly
		var checkErr error
		switch check {
		case CheckUnbalancedBatches:
			found, checkErr = d.unbalancedBatches(ctx, companyID)
		case CheckOldDrafts:
			found, checkErr = d.oldDrafts(ctx, companyID)
		case CheckMissingLettrage:
			found, checkErr = d.missingLettrage(ctx, companyID)
		case CheckUnusualAmounts:
			found, checkErr = d.unusualAmounts(ctx, companyID)
		case CheckDuplicateEntries:
			// Advertised but not implemented; contributes nothing.
		}
		if checkErr != nil {
			d.logger.Warn("anomaly check degraded", "check", check, "error", checkErr)
			continue
		}
		anomalies = append(anomalies, found...)
	}

	summary := anomalySummary{Total: len(anomalies)}
	for _, a := range anomalies {
		switch a.Severity {
		case "high":
			summary.High++
		case "medium":
			summary.Medium++
		case "low":
			summary.Low++
		}
	}
	return agent.ToolResponse{Payload: anomalyResult{
		Success:   true,
		Anomalies: anomalies,
		Summary:   summary,
	}}, nil
}

func selectedChecks(raw any) ([]string, error) {
	if raw == nil {
		return CheckTypes, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("check_types must be an array")
	}
	var checks []string
	for _, item := range items {
		name, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("check_types entries must be strings")
		}
		if !validCheck(name) {
			return nil, fmt.Errorf("unknown check type %q", name)
		}
		checks = append(checks, name)
	}
	return checks, nil
}

func validCheck(name string) bool {
	for _, check := range CheckTypes {
		if name == check {
			return true
		}
	}
	return false
}

func (d *DetectAnomalies) fetchEntries(ctx context.Context, columns []string, filters map[string]store.Filter, companyID string) ([]store.JournalEntry, error) {
	if companyID != "" {
		filters["company_id"] = store.Eq(companyID)
	}
	return store.Entries(ctx, d.store, store.SelectQuery{
		Table:   "journal_entries",
		Columns: columns,
		Filters: filters,
	})
}

func (d *DetectAnomalies) unbalancedBatches(ctx context.Context, companyID string) ([]Anomaly, error) {
	entries, err := d.fetchEntries(ctx, []string{"batch_id", "s", "montant"}, map[string]store.Filter{}, companyID)
	if err != nil {
		return nil, err
	}

	type totals struct{ debit, credit float64 }
	batchTotals := map[string]*totals{}
	var batchOrder []string
	for _, entry := range entries {
		t, ok := batchTotals[entry.BatchID]
		if !ok {
			t = &totals{}
			batchTotals[entry.BatchID] = t
			batchOrder = append(batchOrder, entry.BatchID)
		}
		if entry.Side == "D" {
			t.debit += entry.Amount
		} else {
			t.credit += entry.Amount
		}
	}

	var anomalies []Anomaly
	for _, batchID := range batchOrder {
		t := batchTotals[batchID]
		diff := t.debit - t.credit
		if diff < 0 {
			diff = -diff
		}
		if diff > balanceTolerance {
			anomalies = append(anomalies, Anomaly{
				Type:        CheckUnbalancedBatches,
				Severity:    "high",
				Description: fmt.Sprintf("Lot %s déséquilibré", batchID),
				Details: map[string]any{
					"batch_id":   batchID,
					"debit":      t.debit,
					"credit":     t.credit,
					"difference": round2(diff),
				},
			})
		}
	}
	return anomalies, nil
}

func (d *DetectAnomalies) oldDrafts(ctx context.Context, companyID string) ([]Anomaly, error) {
	cutoff := d.now().Add(-oldDraftAge)
	entries, err := d.fetchEntries(ctx, []string{"batch_id", "created_at"}, map[string]store.Filter{
		"status":     store.Eq("draft"),
		"created_at": {Op: store.OpLt, Value: cutoff},
	}, companyID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var batches []string
	for _, entry := range entries {
		if !seen[entry.BatchID] {
			seen[entry.BatchID] = true
			batches = append(batches, entry.BatchID)
		}
	}
	if len(batches) == 0 {
		return nil, nil
	}

	sample := batches
	if len(sample) > oldDraftSampleCap {
		sample = sample[:oldDraftSampleCap]
	}
	return []Anomaly{{
		Type:        CheckOldDrafts,
		Severity:    "medium",
		Description: fmt.Sprintf("%d lot(s) en brouillard depuis plus de 30 jours", len(batches)),
		Details: map[string]any{
			"count":   len(batches),
			"batches": sample,
		},
	}}, nil
}

func (d *DetectAnomalies) missingLettrage(ctx context.Context, companyID string) ([]Anomaly, error) {
	entries, err := d.fetchEntries(ctx, []string{"compte", "id"}, map[string]store.Filter{
		"letter_code": {Op: store.OpIs, Value: nil},
		"status":      store.Eq("posted"),
	}, companyID)
	if err != nil {
		return nil, err
	}

	var clients, fournisseurs int
	for _, entry := range entries {
		switch {
		case strings.HasPrefix(entry.Account, "411"):
			clients++
		case strings.HasPrefix(entry.Account, "401"):
			fournisseurs++
		}
	}
	if clients == 0 && fournisseurs == 0 {
		return nil, nil
	}
	return []Anomaly{{
		Type:        CheckMissingLettrage,
		Severity:    "low",
		Description: fmt.Sprintf("%d écritures clients/fournisseurs non lettrées", clients+fournisseurs),
		Details: map[string]any{
			"clients":      clients,
			"fournisseurs": fournisseurs,
		},
	}}, nil
}

func (d *DetectAnomalies) unusualAmounts(ctx context.Context, companyID string) ([]Anomaly, error) {
	entries, err := d.fetchEntries(ctx, []string{"id", "compte", "montant", "libelle"}, map[string]store.Filter{
		"montant": {Op: store.OpGt, Value: unusualAmountOver},
	}, companyID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	sample := entries
	if len(sample) > unusualSampleCap {
		sample = sample[:unusualSampleCap]
	}
	sampled := make([]map[string]any, len(sample))
	for i, entry := range sample {
		sampled[i] = map[string]any{
			"compte":  entry.Account,
			"montant": entry.Amount,
			"libelle": entry.Label,
		}
	}
	return []Anomaly{{
		Type:        CheckUnusualAmounts,
		Severity:    "medium",
		Description: fmt.Sprintf("%d écriture(s) avec montant > 10 000€", len(entries)),
		Details: map[string]any{
			"count":   len(entries),
			"entries": sampled,
		},
	}}, nil
}
