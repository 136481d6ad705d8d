package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/resdex/internal/db"
	"github.com/kailas-cloud/resdex/internal/db/filter"
)

const scoreField = "__vector_score"

// SearchKNN runs a filtered KNN query. Scores are cosine similarity 1-d clamped to [0,1].
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, fmt.Errorf("index name is required")
	case len(q.Vector) == 0:
		return nil, fmt.Errorf("vector is required")
	case q.K <= 0:
		return nil, fmt.Errorf("k must be positive")
	}
	field := q.VectorField
	if field == "" {
		field = "vector"
	}

	prefilter := buildFilter(q.Filter)
	if prefilter == "" {
		prefilter = "*"
	} else {
		prefilter = "(" + prefilter + ")"
	}
	query := fmt.Sprintf("%s=>[KNN %d @%s $BLOB]", prefilter, q.K, field)

	args := []string{q.IndexName, query}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)+1))
		args = append(args, q.ReturnFields...)
		args = append(args, scoreField)
	}
	args = append(args,
		"SORTBY", scoreField, "ASC",
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", rueidis.BinaryString(db.EncodeVector(q.Vector)),
		"DIALECT", "2",
	)

	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	res, err := parseResult(raw)
	if err != nil {
		return nil, err
	}

	for i := range res.Entries {
		e := &res.Entries[i]
		if d, err := strconv.ParseFloat(e.Fields[scoreField], 64); err == nil {
			e.Score = max(0, min(1, 1-d))
		}
		delete(e.Fields, scoreField)
	}
	return res, nil
}

// SearchList pages through documents matching the filter.
func (s *Store) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	args := []string{q.IndexName, listQuery(q.Filter), "LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(limit)}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	args = append(args, "DIALECT", "2")

	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return parseResult(raw)
}

// SearchCount counts matches with LIMIT 0 0.
func (s *Store) SearchCount(ctx context.Context, index string, q *db.ListQuery) (int, error) {
	var expr filter.Expression
	if q != nil {
		expr = q.Filter
	}
	cmd := s.b().Arbitrary("FT.SEARCH").Args(index, listQuery(expr), "LIMIT", "0", "0", "DIALECT", "2").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

func listQuery(expr filter.Expression) string {
	if q := buildFilter(expr); q != "" {
		return q
	}
	return "*"
}

// parseResult reads the RESP2 reply [total, key1, fields1, key2, fields2, ...].
func parseResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		entries = append(entries, db.SearchEntry{Key: key, Fields: fieldPairs(fields)})
	}
	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func fieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// buildFilter renders the expression as an FT query: clauses are ANDed, values inside a clause ORed.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, len(expr.Clauses())+len(expr.Negated()))
	for _, c := range expr.Clauses() {
		parts = append(parts, tagClause(c))
	}
	for _, c := range expr.Negated() {
		parts = append(parts, "-"+tagClause(c))
	}
	return strings.Join(parts, " ")
}

func tagClause(c filter.Clause) string {
	vals := make([]string, len(c.Values))
	for i, v := range c.Values {
		vals[i] = tagEscaper.Replace(v)
	}
	return fmt.Sprintf("@%s:{%s}", c.Field, strings.Join(vals, " | "))
}

var tagEscaper = strings.NewReplacer(
	",", `\,`, ".", `\.`, "<", `\<`, ">", `\>`, "{", `\{`, "}", `\}`,
	`"`, `\"`, "'", `\'`, ":", `\:`, ";", `\;`, "!", `\!`, "@", `\@`,
	"#", `\#`, "$", `\$`, "%", `\%`, "^", `\^`, "&", `\&`, "*", `\*`,
	"(", `\(`, ")", `\)`, "-", `\-`, "+", `\+`, "=", `\=`, "~", `\~`,
	"|", `\|`, " ", `\ `,
)
