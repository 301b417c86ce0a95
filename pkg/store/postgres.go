package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres reads and writes through a direct database connection. Supabase is
// plain Postgres underneath, so deployments with a DATABASE_URL can skip the
// REST hop.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a connection pool for the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Select(ctx context.Context, q SelectQuery) (*Result, error) {
	if err := checkQuery(q); err != nil {
		return nil, err
	}

	sql, args, err := buildSelectSQL(q)
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: select %s: %w", q.Table, err)
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: select %s: %w", q.Table, err)
	}

	total := int64(len(out))
	if q.WithCount {
		countSQL, countArgs, err := buildCountSQL(q)
		if err != nil {
			return nil, err
		}
		if err := p.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
			return nil, fmt.Errorf("postgres: count %s: %w", q.Table, err)
		}
	}
	return &Result{Rows: out, Total: total}, nil
}

func (p *Postgres) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	if !validIdent(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := sortedColumns(rows[0])
	for _, col := range cols {
		if !validIdent(col) {
			return nil, fmt.Errorf("invalid column name %q", col)
		}
	}

	var sb strings.Builder
	var args []any
	fmt.Fprintf(&sb, "INSERT INTO %q (", table)
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", col)
	}
	sb.WriteString(") VALUES ")
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, col := range cols {
			if j > 0 {
				sb.WriteString(", ")
			}
			args = append(args, row[col])
			fmt.Fprintf(&sb, "$%d", len(args))
		}
		sb.WriteString(")")
	}
	sb.WriteString(" RETURNING *")

	result, err := p.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: insert %s: %w", table, err)
	}
	inserted, err := collectRows(result)
	if err != nil {
		return nil, fmt.Errorf("postgres: insert %s: %w", table, err)
	}
	return inserted, nil
}

func (p *Postgres) Update(ctx context.Context, table string, filters map[string]Filter, values Row) ([]Row, error) {
	if !validIdent(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("postgres: update %s: no values", table)
	}

	var sb strings.Builder
	var args []any
	fmt.Fprintf(&sb, "UPDATE %q SET ", table)
	for i, col := range sortedColumns(values) {
		if !validIdent(col) {
			return nil, fmt.Errorf("invalid column name %q", col)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		args = append(args, values[col])
		fmt.Fprintf(&sb, "%q = $%d", col, len(args))
	}

	where, whereArgs, err := buildWhere(filters, len(args))
	if err != nil {
		return nil, err
	}
	sb.WriteString(where)
	args = append(args, whereArgs...)
	sb.WriteString(" RETURNING *")

	result, err := p.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: update %s: %w", table, err)
	}
	updated, err := collectRows(result)
	if err != nil {
		return nil, fmt.Errorf("postgres: update %s: %w", table, err)
	}
	return updated, nil
}

func buildSelectSQL(q SelectQuery) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		sb.WriteString("*")
	} else {
		for i, col := range q.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%q", col)
		}
	}
	fmt.Fprintf(&sb, " FROM %q", q.Table)

	where, args, err := buildWhere(q.Filters, 0)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(where)

	if len(q.Order) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range q.Order {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%q", o.Column)
			if o.Descending {
				sb.WriteString(" DESC")
			}
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", q.Offset)
	}
	return sb.String(), args, nil
}

func buildCountSQL(q SelectQuery) (string, []any, error) {
	where, args, err := buildWhere(q.Filters, 0)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT count(*) FROM %q", q.Table) + where, args, nil
}

// buildWhere renders the filters as a WHERE clause with placeholders starting
// after argOffset. Columns are iterated in sorted order so generated SQL is
// deterministic.
func buildWhere(filters map[string]Filter, argOffset int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	cols := make([]string, 0, len(filters))
	for col := range filters {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var sb strings.Builder
	var args []any
	sb.WriteString(" WHERE ")
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		f := filters[col]
		switch f.Op {
		case OpEq:
			args = append(args, f.Value)
			fmt.Fprintf(&sb, "%q = $%d", col, argOffset+len(args))
		case OpNeq:
			args = append(args, f.Value)
			fmt.Fprintf(&sb, "%q <> $%d", col, argOffset+len(args))
		case OpGt:
			args = append(args, f.Value)
			fmt.Fprintf(&sb, "%q > $%d", col, argOffset+len(args))
		case OpGte:
			args = append(args, f.Value)
			fmt.Fprintf(&sb, "%q >= $%d", col, argOffset+len(args))
		case OpLt:
			args = append(args, f.Value)
			fmt.Fprintf(&sb, "%q < $%d", col, argOffset+len(args))
		case OpLte:
			args = append(args, f.Value)
			fmt.Fprintf(&sb, "%q <= $%d", col, argOffset+len(args))
		case OpLike:
			args = append(args, f.Value)
			fmt.Fprintf(&sb, "%q LIKE $%d", col, argOffset+len(args))
		case OpILike:
			args = append(args, f.Value)
			fmt.Fprintf(&sb, "%q ILIKE $%d", col, argOffset+len(args))
		case OpIs:
			if !isNullSpec(f.Value) {
				return "", nil, fmt.Errorf("filter %s: is supports only null", col)
			}
			fmt.Fprintf(&sb, "%q IS NULL", col)
		case OpIn:
			items, err := inItems(f.Value)
			if err != nil {
				return "", nil, fmt.Errorf("filter %s: %w", col, err)
			}
			args = append(args, items)
			fmt.Fprintf(&sb, "%q = ANY($%d)", col, argOffset+len(args))
		default:
			return "", nil, fmt.Errorf("filter %s: unsupported operator %q", col, f.Op)
		}
	}
	return sb.String(), args, nil
}

func collectRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()

	var out []Row
	fields := rows.FieldDescriptions()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(fields))
		for i, field := range fields {
			row[string(field.Name)] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedColumns(row Row) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
