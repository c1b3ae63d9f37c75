package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragpack/internal/db"
	"github.com/kailas-cloud/ragpack/internal/domain/search/filter"
	"github.com/kailas-cloud/ragpack/internal/domain/search/mode"
)

const (
	vectorParam = "vec"
	keyField    = "__key"
	scoreField  = "__score"
)

// SearchHybrid runs a fused text+vector search via FT.HYBRID.
// Both sub-queries are ranked by the engine and combined with RRF server side;
// entries come back in fused order.
func (s *Store) SearchHybrid(ctx context.Context, q *db.HybridQuery) (*db.SearchResult, error) {
	args, err := buildHybridArgs(q)
	if err != nil {
		return nil, err
	}

	cmd := s.b().Arbitrary("FT.HYBRID").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpHybrid, Err: err}
	}

	return parseHybridResult(raw)
}

func buildHybridArgs(q *db.HybridQuery) ([]string, error) {
	if q.IndexName == "" {
		return nil, errors.New("index name is required")
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, errors.New("query text is required")
	}
	if len(q.Vector) == 0 {
		return nil, errors.New("vector is required")
	}
	if q.K <= 0 {
		return nil, errors.New("k must be positive")
	}
	if q.Limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	textField := q.TextField
	if textField == "" {
		textField = "content"
	}
	vectorField := q.VectorField
	if vectorField == "" {
		vectorField = "embedding"
	}

	args := []string{
		q.IndexName,
		"SEARCH", buildSearchQuery(textField, q),
		"VSIM", "@" + vectorField, "$" + vectorParam,
		"KNN", "2", "K", strconv.Itoa(q.K),
	}

	if vf := buildVectorFilter(textField, q); vf != "" {
		args = append(args, "FILTER", vf)
	}

	if q.Fusion.Constant > 0 || q.Fusion.Window > 0 {
		rrf := make([]string, 0, 4)
		if q.Fusion.Constant > 0 {
			rrf = append(rrf, "CONSTANT", strconv.Itoa(q.Fusion.Constant))
		}
		if q.Fusion.Window > 0 {
			rrf = append(rrf, "WINDOW", strconv.Itoa(q.Fusion.Window))
		}
		args = append(args, "COMBINE", "RRF", strconv.Itoa(len(rrf)))
		args = append(args, rrf...)
	} else {
		args = append(args, "COMBINE", "RRF", "0")
	}

	args = append(args, "LIMIT", "0", strconv.Itoa(q.Limit))

	if len(q.LoadFields) > 0 {
		args = append(args, "LOAD", strconv.Itoa(len(q.LoadFields)))
		for _, f := range q.LoadFields {
			args = append(args, "@"+f)
		}
	}

	args = append(args, "PARAMS", "2", vectorParam, db.EncodeVector(q.Vector))

	return args, nil
}

// buildSearchQuery assembles the lexical side: the match-mode clause OR'd with
// weighted boost phrases, AND'ed with required phrases and scope filters.
func buildSearchQuery(field string, q *db.HybridQuery) string {
	clauses := []string{"(" + buildMatchClause(field, q.Text, q.MatchMode) + ")"}
	for _, b := range q.Boosts {
		clauses = append(clauses, buildBoostClause(field, b))
	}

	var lexical string
	if len(clauses) == 1 {
		lexical = clauses[0]
	} else {
		lexical = "(" + strings.Join(clauses, " | ") + ")"
	}

	parts := []string{lexical}
	parts = append(parts, buildRequired(field, q.Required)...)
	if f := buildFilter(q.Filters); f != "" {
		parts = append(parts, f)
	}
	return strings.Join(parts, " ")
}

// buildVectorFilter restricts the KNN side to the same required phrases and scope.
func buildVectorFilter(field string, q *db.HybridQuery) string {
	parts := buildRequired(field, q.Required)
	if f := buildFilter(q.Filters); f != "" {
		parts = append(parts, f)
	}
	return strings.Join(parts, " ")
}

func buildMatchClause(field, text string, m mode.Mode) string {
	words := strings.Fields(text)
	escaped := make([]string, 0, len(words))
	for _, w := range words {
		escaped = append(escaped, escapeQuery(w))
	}

	switch m {
	case mode.Phrase:
		return fmt.Sprintf("@%s:%s", field, quotePhrase(text))
	case mode.Fuzzy:
		for i, w := range escaped {
			escaped[i] = "%" + w + "%"
		}
		return fmt.Sprintf("@%s:(%s)", field, strings.Join(escaped, " | "))
	case mode.Prefix:
		escaped[len(escaped)-1] += "*"
		return fmt.Sprintf("@%s:(%s)", field, strings.Join(escaped, " "))
	default:
		return fmt.Sprintf("@%s:(%s)", field, strings.Join(escaped, " | "))
	}
}

func buildBoostClause(field string, b db.Boost) string {
	return fmt.Sprintf("(@%s:%s) => { $weight: %s; }",
		field, quotePhrase(b.Phrase), strconv.FormatFloat(b.Weight, 'f', -1, 64))
}

func buildRequired(field string, phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, fmt.Sprintf("@%s:%s", field, quotePhrase(p)))
	}
	return out
}

// --- Result parsing ---

// parseHybridResult reads the RESP2 reply: a flat key/value array with
// "total_results" and "results"; each result is itself a flat field/value array.
func parseHybridResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	out := &db.SearchResult{}

	for i := 0; i+1 < len(raw); i += 2 {
		name, err := raw[i].ToString()
		if err != nil {
			continue
		}

		switch name {
		case "total_results":
			total, err := raw[i+1].AsInt64()
			if err != nil {
				return nil, fmt.Errorf("parse total: %w", err)
			}
			out.Total = int(total)

		case "results":
			rows, err := raw[i+1].ToArray()
			if err != nil {
				return nil, fmt.Errorf("parse results: %w", err)
			}
			out.Entries = make([]db.SearchEntry, 0, len(rows))
			for _, row := range rows {
				entry, ok := parseHybridRow(row)
				if ok {
					out.Entries = append(out.Entries, entry)
				}
			}
		}
	}

	return out, nil
}

func parseHybridRow(row rueidis.RedisMessage) (db.SearchEntry, bool) {
	pairs, err := row.ToArray()
	if err != nil {
		return db.SearchEntry{}, false
	}

	entry := db.SearchEntry{Fields: parseFieldPairs(pairs)}
	if key, ok := entry.Fields[keyField]; ok {
		entry.Key = key
		delete(entry.Fields, keyField)
	}
	if scoreStr, ok := entry.Fields[scoreField]; ok {
		if score, err := strconv.ParseFloat(scoreStr, 64); err == nil {
			entry.Score = score
		}
		delete(entry.Fields, scoreField)
	}
	return entry, true
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
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

// --- Filter building ---

// buildFilter translates filter.Expression into a query-syntax pre-filter.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}

	var parts []string
	for _, cond := range expr.Must() {
		parts = append(parts, buildCondition(cond))
	}
	for _, cond := range expr.MustNot() {
		parts = append(parts, "-"+buildCondition(cond))
	}
	return strings.Join(parts, " ")
}

func buildCondition(cond filter.Condition) string {
	if cond.IsMatch() {
		return buildTagFilter(cond.Key(), cond.Match())
	}
	if cond.IsRange() {
		return buildNumericFilter(cond.Key(), *cond.Range())
	}
	return ""
}

func buildTagFilter(key, value string) string {
	return fmt.Sprintf("@%s:{%s}", key, tagEscaper.Replace(value))
}

func buildNumericFilter(key string, r filter.Range) string {
	minBound := "-inf"
	maxBound := "+inf"
	if r.GTE() != nil {
		minBound = strconv.FormatFloat(*r.GTE(), 'g', -1, 64)
	}
	if r.LTE() != nil {
		maxBound = strconv.FormatFloat(*r.LTE(), 'g', -1, 64)
	}
	return fmt.Sprintf("@%s:[%s %s]", key, minBound, maxBound)
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
	`,`, `\,`,
	`.`, `\.`,
)

var phraseEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quotePhrase(s string) string {
	return `"` + phraseEscaper.Replace(strings.TrimSpace(s)) + `"`
}
