package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PostgREST talks to the Supabase REST API (PostgREST) using the project base
// URL and an API key.
type PostgREST struct {
	baseURL string
	key     string
	client  *http.Client
}

// PostgRESTOption customizes the client.
type PostgRESTOption func(*PostgREST)

// WithHTTPClient swaps the underlying HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) PostgRESTOption {
	return func(p *PostgREST) {
		if client != nil {
			p.client = client
		}
	}
}

// NewPostgREST builds a client for the given Supabase project URL and key.
func NewPostgREST(baseURL, key string, opts ...PostgRESTOption) (*PostgREST, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("postgrest: base URL is empty")
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("postgrest: API key is empty")
	}
	p := &PostgREST{
		baseURL: baseURL,
		key:     key,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *PostgREST) Select(ctx context.Context, q SelectQuery) (*Result, error) {
	if err := checkQuery(q); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("select", columnList(q.Columns))
	for col, f := range q.Filters {
		params.Add(col, encodeFilter(f))
	}
	if len(q.Order) > 0 {
		keys := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			keys[i] = o.Column + "." + dir
		}
		params.Set("order", strings.Join(keys, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	headers := http.Header{}
	if q.WithCount {
		headers.Set("Prefer", "count=exact")
	}

	resp, body, err := p.do(ctx, http.MethodGet, q.Table, params, nil, headers)
	if err != nil {
		return nil, err
	}

	var rows []Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("postgrest: decode rows: %w", err)
	}

	total := int64(len(rows))
	if q.WithCount {
		if n, ok := parseContentRangeTotal(resp.Header.Get("Content-Range")); ok {
			total = n
		}
	}
	return &Result{Rows: rows, Total: total}, nil
}

func (p *PostgREST) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	if !validIdent(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("postgrest: encode insert: %w", err)
	}

	headers := http.Header{}
	headers.Set("Prefer", "return=representation")

	_, body, err := p.do(ctx, http.MethodPost, table, nil, payload, headers)
	if err != nil {
		return nil, err
	}

	var inserted []Row
	if err := json.Unmarshal(body, &inserted); err != nil {
		return nil, fmt.Errorf("postgrest: decode inserted rows: %w", err)
	}
	return inserted, nil
}

func (p *PostgREST) Update(ctx context.Context, table string, filters map[string]Filter, values Row) ([]Row, error) {
	if !validIdent(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	for col, f := range filters {
		if !validIdent(col) {
			return nil, fmt.Errorf("invalid filter column %q", col)
		}
		if !ValidOp(f.Op) {
			return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}

	payload, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("postgrest: encode update: %w", err)
	}

	params := url.Values{}
	for col, f := range filters {
		params.Add(col, encodeFilter(f))
	}
	headers := http.Header{}
	headers.Set("Prefer", "return=representation")

	_, body, err := p.do(ctx, http.MethodPatch, table, params, payload, headers)
	if err != nil {
		return nil, err
	}

	var updated []Row
	if err := json.Unmarshal(body, &updated); err != nil {
		return nil, fmt.Errorf("postgrest: decode updated rows: %w", err)
	}
	return updated, nil
}

func (p *PostgREST) do(ctx context.Context, method, table string, params url.Values, payload []byte, headers http.Header) (*http.Response, []byte, error) {
	endpoint := p.baseURL + "/rest/v1/" + table
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("postgrest: build request: %w", err)
	}
	req.Header.Set("apikey", p.key)
	req.Header.Set("Authorization", "Bearer "+p.key)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("postgrest: %s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("postgrest: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("postgrest: %s %s: %s", method, table, errorMessage(resp.StatusCode, body))
	}
	return resp, body, nil
}

// encodeFilter renders a Filter in PostgREST query syntax, e.g. eq.411000,
// like.411%, in.(a,b), is.null.
func encodeFilter(f Filter) string {
	switch f.Op {
	case OpIs:
		return "is.null"
	case OpIn:
		items, err := inItems(f.Value)
		if err != nil {
			return "in.()"
		}
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = fmt.Sprint(item)
		}
		return "in.(" + strings.Join(parts, ",") + ")"
	default:
		return f.Op + "." + encodeValue(f.Value)
	}
}

func encodeValue(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

// parseContentRangeTotal extracts the total from a "0-24/3573" range header.
func parseContentRangeTotal(header string) (int64, bool) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return 0, false
	}
	total := header[idx+1:]
	if total == "*" {
		return 0, false
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func errorMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return fmt.Sprintf("status %d: %s", status, payload.Message)
	}
	return fmt.Sprintf("status %d", status)
}
