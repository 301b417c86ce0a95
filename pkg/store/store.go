// Package store provides the data-store capability the assistant reads and
// writes accounting records through. Implementations exist for the Supabase
// PostgREST API, for a direct Postgres connection, and for in-memory use.
package store

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// Filter operators understood by every Store implementation.
const (
	OpEq    = "eq"
	OpNeq   = "neq"
	OpGt    = "gt"
	OpGte   = "gte"
	OpLt    = "lt"
	OpLte   = "lte"
	OpLike  = "like"
	OpILike = "ilike"
	OpIs    = "is"
	OpIn    = "in"
)

// Filter constrains a single column. Op is one of the Op* constants.
type Filter struct {
	Op    string
	Value any
}

// Eq builds an equality filter, the most common case.
func Eq(value any) Filter { return Filter{Op: OpEq, Value: value} }

// ValidOp reports whether op is a supported filter operator.
func ValidOp(op string) bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpLike, OpILike, OpIs, OpIn:
		return true
	}
	return false
}

// Order describes one sort key.
type Order struct {
	Column     string
	Descending bool
}

// SelectQuery describes a read against one logical table.
type SelectQuery struct {
	Table     string
	Columns   []string // empty selects every column
	Filters   map[string]Filter
	Order     []Order
	Limit     int
	Offset    int
	WithCount bool // when set, Result.Total carries the unpaged row count
}

// Row is a single record keyed by column name.
type Row map[string]any

// Result is the outcome of a Select.
type Result struct {
	Rows  []Row
	Total int64
}

// Store is the capability consumed by the tools and the compat module. Every
// failure is returned as an error; implementations never panic across this
// boundary.
type Store interface {
	Select(ctx context.Context, q SelectQuery) (*Result, error)
	Insert(ctx context.Context, table string, rows []Row) ([]Row, error)
	Update(ctx context.Context, table string, filters map[string]Filter, values Row) ([]Row, error)
}

// JournalEntry is the typed view of a journal_entries row. Columns keep the
// French names used by the database schema.
type JournalEntry struct {
	ID         string    `mapstructure:"id"`
	CompanyID  string    `mapstructure:"company_id"`
	JournalID  string    `mapstructure:"journal_id"`
	BatchID    string    `mapstructure:"batch_id"`
	Account    string    `mapstructure:"compte"`
	Side       string    `mapstructure:"s"` // "D" debit, "C" credit
	Amount     float64   `mapstructure:"montant"`
	Label      string    `mapstructure:"libelle"`
	Date       string    `mapstructure:"date"` // DD/MM/YY
	Status     string    `mapstructure:"status"`
	LetterCode string    `mapstructure:"letter_code"`
	PostedAt   string    `mapstructure:"posted_at"`
	UserID     string    `mapstructure:"user_id"`
	CreatedAt  time.Time `mapstructure:"created_at"`
}

// DecodeEntries converts generic rows into typed journal entries. Timestamps
// arrive as RFC 3339 strings from PostgREST and as time.Time from pgx; both
// are accepted.
func DecodeEntries(rows []Row) ([]JournalEntry, error) {
	entries := make([]JournalEntry, 0, len(rows))
	for i, row := range rows {
		var entry JournalEntry
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeHookFunc(time.RFC3339),
				uuidToStringHook,
				timeToStringHook,
			),
			WeaklyTypedInput: true,
			Result:           &entry,
		})
		if err != nil {
			return nil, fmt.Errorf("build entry decoder: %w", err)
		}
		if err := decoder.Decode(scrubNulls(row)); err != nil {
			return nil, fmt.Errorf("decode entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Entries runs q and decodes the rows.
func Entries(ctx context.Context, s Store, q SelectQuery) ([]JournalEntry, error) {
	res, err := s.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	return DecodeEntries(res.Rows)
}

// uuidToStringHook converts the [16]byte values pgx returns for uuid columns
// into their canonical string form.
func uuidToStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	if raw, ok := data.([16]byte); ok {
		return uuid.UUID(raw).String(), nil
	}
	return data, nil
}

// timeToStringHook renders time.Time values from pgx into RFC 3339 strings
// for string-typed fields such as posted_at.
func timeToStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	if t, ok := data.(time.Time); ok {
		return t.UTC().Format(time.RFC3339), nil
	}
	return data, nil
}

// scrubNulls drops nil values so nullable columns decode to zero values
// instead of failing the whole row.
func scrubNulls(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// validIdent guards identifiers interpolated into SQL or URLs. Tables come
// from an allow-list upstream, but column names may originate from model
// output.
func validIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func checkQuery(q SelectQuery) error {
	if !validIdent(q.Table) {
		return fmt.Errorf("invalid table name %q", q.Table)
	}
	for _, col := range q.Columns {
		if !validIdent(col) {
			return fmt.Errorf("invalid column name %q", col)
		}
	}
	for col, f := range q.Filters {
		if !validIdent(col) {
			return fmt.Errorf("invalid filter column %q", col)
		}
		if !ValidOp(f.Op) {
			return fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	for _, o := range q.Order {
		if !validIdent(o.Column) {
			return fmt.Errorf("invalid order column %q", o.Column)
		}
	}
	return nil
}

func columnList(cols []string) string {
	if len(cols) == 0 {
		return "*"
	}
	return strings.Join(cols, ",")
}
