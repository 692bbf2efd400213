package repositories

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Writes are chunked so one bad row poisons at most its own batch.
const writeBatchSize = 500

// SQLStore implements the ports.Store boundary over database/sql.
// It works against postgres (pgx driver) and sqlite (modernc driver)
// for local runs; queries are written with ? placeholders and rebound
// for postgres.
type SQLStore struct {
	DB       *sql.DB
	postgres bool
}

func NewSQLStore(db *sql.DB, driverName string) *SQLStore {
	return &SQLStore{
		DB:       db,
		postgres: driverName == "pgx" || driverName == "postgres",
	}
}

// bind rewrites ? placeholders to $1..$n for postgres.
func (s *SQLStore) bind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// placeholders returns "(?,?,...)" repeated rows times, joined by
// commas, for multi-row VALUES clauses.
func placeholders(cols, rows int) string {
	one := "(" + strings.TrimSuffix(strings.Repeat("?,", cols), ",") + ")"
	parts := make([]string, rows)
	for i := range parts {
		parts[i] = one
	}
	return strings.Join(parts, ",")
}

// chunk splits items into writeBatchSize slices.
func chunk[T any](items []T) [][]T {
	if len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, len(items)/writeBatchSize+1)
	for start := 0; start < len(items); start += writeBatchSize {
		end := start + writeBatchSize
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func scanNullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func scanNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func idList(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func batchErr(op string, batch int, err error) string {
	return fmt.Sprintf("%s: batch %d: %v", op, batch, err)
}
