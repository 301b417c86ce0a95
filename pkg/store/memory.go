package store

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps tables in process memory. It implements the full filter
// semantics and is used by tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]Row
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]Row)}
}

// Seed replaces the contents of a table.
func (m *MemoryStore) Seed(table string, rows []Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]Row, len(rows))
	for i, row := range rows {
		copied[i] = cloneRow(row)
	}
	m.tables[table] = copied
}

func (m *MemoryStore) Select(ctx context.Context, q SelectQuery) (*Result, error) {
	if err := checkQuery(q); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	rows := m.tables[q.Table]
	m.mu.RUnlock()

	var matched []Row
	for _, row := range rows {
		ok, err := matchRow(row, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, row)
		}
	}

	sortRows(matched, q.Order)
	total := int64(len(matched))

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]Row, len(matched))
	for i, row := range matched {
		out[i] = projectRow(row, q.Columns)
	}
	return &Result{Rows: out, Total: total}, nil
}

func (m *MemoryStore) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	if !validIdent(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := make([]Row, 0, len(rows))
	for _, row := range rows {
		stored := cloneRow(row)
		if _, ok := stored["id"]; !ok {
			stored["id"] = uuid.NewString()
		}
		if _, ok := stored["created_at"]; !ok {
			stored["created_at"] = time.Now().UTC()
		}
		m.tables[table] = append(m.tables[table], stored)
		inserted = append(inserted, cloneRow(stored))
	}
	return inserted, nil
}

func (m *MemoryStore) Update(ctx context.Context, table string, filters map[string]Filter, values Row) ([]Row, error) {
	if !validIdent(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var updated []Row
	for _, row := range m.tables[table] {
		ok, err := matchRow(row, filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for k, v := range values {
			row[k] = v
		}
		updated = append(updated, cloneRow(row))
	}
	return updated, nil
}

func matchRow(row Row, filters map[string]Filter) (bool, error) {
	for col, f := range filters {
		ok, err := matchValue(row[col], f)
		if err != nil {
			return false, fmt.Errorf("filter %s: %w", col, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchValue(value any, f Filter) (bool, error) {
	switch f.Op {
	case OpEq:
		return compareValues(value, f.Value) == 0 && value != nil, nil
	case OpNeq:
		return compareValues(value, f.Value) != 0, nil
	case OpGt:
		return value != nil && compareValues(value, f.Value) > 0, nil
	case OpGte:
		return value != nil && compareValues(value, f.Value) >= 0, nil
	case OpLt:
		return value != nil && compareValues(value, f.Value) < 0, nil
	case OpLte:
		return value != nil && compareValues(value, f.Value) <= 0, nil
	case OpLike, OpILike:
		pattern, ok := f.Value.(string)
		if !ok {
			return false, fmt.Errorf("%s requires a string pattern", f.Op)
		}
		text, ok := value.(string)
		if !ok {
			return false, nil
		}
		return matchLike(text, pattern, f.Op == OpILike), nil
	case OpIs:
		if isNullSpec(f.Value) {
			return value == nil, nil
		}
		return false, fmt.Errorf("is supports only null")
	case OpIn:
		items, err := inItems(f.Value)
		if err != nil {
			return false, err
		}
		for _, item := range items {
			if compareValues(value, item) == 0 {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported operator %q", f.Op)
	}
}

func isNullSpec(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.EqualFold(s, "null")
}

func inItems(v any) ([]any, error) {
	switch items := v.(type) {
	case []any:
		return items, nil
	case []string:
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("in requires a list, got %T", v)
	}
}

// matchLike evaluates a SQL LIKE pattern where % matches any run and _ a
// single character.
func matchLike(text, pattern string, foldCase bool) bool {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	expr := sb.String()
	if foldCase {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// compareValues orders two loosely typed values: numbers numerically, times
// chronologically, everything else as strings. Returns -1, 0 or 1.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if at, aok := asTime(a); aok {
		if bt, bok := asTime(b); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

func sortRows(rows []Row, order []Order) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			cmp := compareValues(rows[i][o.Column], rows[j][o.Column])
			if cmp == 0 {
				continue
			}
			if o.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func projectRow(row Row, cols []string) Row {
	if len(cols) == 0 {
		return cloneRow(row)
	}
	out := make(Row, len(cols))
	for _, col := range cols {
		out[col] = row[col]
	}
	return out
}

func cloneRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
