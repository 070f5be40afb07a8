package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type sqliteLoader struct{}

func (sqliteLoader) CanLoad(p string) bool {
	lower := strings.ToLower(p)
	for _, ext := range []string{".db", ".sqlite", ".sqlite3"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Load reads a whole table. Without an explicit table name the first user
// table in creation order is used.
func (sqliteLoader) Load(ctx context.Context, p string, opt LoadOptions) (*Dataset, error) {
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, &LoadError{Path: p, Op: "open sqlite", Err: err}
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return nil, &LoadError{Path: p, Op: "open sqlite", Err: err}
	}

	table := opt.Table
	if table == "" {
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY rowid LIMIT 1`,
		).Scan(&table)
		if err == sql.ErrNoRows {
			return nil, &LoadError{Path: p, Op: "select table", Err: fmt.Errorf("database has no tables")}
		}
		if err != nil {
			return nil, &LoadError{Path: p, Op: "select table", Err: err}
		}
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return nil, &LoadError{Path: p, Op: "query " + table, Err: err}
	}
	defer rows.Close()
	names, err := rows.Columns()
	if err != nil {
		return nil, &LoadError{Path: p, Op: "query " + table, Err: err}
	}
	b := NewBuilder(names)
	vals := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	rec := make([]string, len(names))
	total := 0
	for rows.Next() {
		total++
		if opt.MaxRows > 0 && b.Rows() >= opt.MaxRows {
			continue
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &LoadError{Path: p, Op: fmt.Sprintf("scan row %d", total), Err: err}
		}
		for i, v := range vals {
			rec[i] = sqlText(v)
		}
		b.Append(rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &LoadError{Path: p, Op: "query " + table, Err: err}
	}
	ds, err := b.Build(ctx, "", opt.ParseOptions)
	if err != nil {
		return nil, err
	}
	ds.Source.Format = "sqlite"
	ds.Source.Table = table
	if b.Rows() < total {
		ds.Notes = append(ds.Notes, truncationNote(b.Rows(), total))
	}
	return ds, nil
}

func sqlText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
