package database

import (
	stdsql "database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// stdNullString, stdNullInt, stdNullTime are thin aliases over the standard
// library's nullable scan types, named locally so store_*.go files read
// uniformly without repeating the sql. package qualifier everywhere.
type stdNullString = stdsql.NullString
type stdNullInt = stdsql.NullInt64
type stdNullTime = stdsql.NullTime

// nullString turns an empty Go string into a SQL NULL for optional text
// columns, matching the ent schemas' Optional() (non-Nillable) fields which
// store "" and NULL interchangeably at the Go layer.
func nullString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

// pqStringArray adapts a []string for use as a Postgres array parameter in
// ANY($n) clauses, via lib/pq's array literal encoding (the pgx stdlib
// driver accepts it as a plain text parameter).
func pqStringArray(v []string) interface{} {
	return pq.Array(v)
}

// decodeJSONString unmarshals a JSON-encoded string app_config value (the
// value is stored as valid JSON, e.g. a bare string is quoted) and returns
// "" on any decode failure or missing key.
func decodeJSONString(raw string) string {
	if raw == "" {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return ""
	}
	return s
}

// decodeScoreMap decodes a meta_results.meta_scores jsonb column into its
// Go map[string]float64 shape.
func decodeScoreMap(raw []byte) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]float64
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// timeOrNow returns t if it's non-zero, otherwise the current time; used
// where a timestamp column feeds a query but the caller left it unset.
func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
