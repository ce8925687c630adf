// Package relational reads bounded samples from relational tables.
//
// The relational package is responsible for:
//   - Resolving a source config into a driver dialect and DSN
//   - Running the bounded preview query (SELECT * ... LIMIT n)
//   - Converting driver rows into generic keyed records
//   - Connectivity checks for source validation
//
// Design constraints:
//   - One sample is one short-lived connection: open, query, close.
//     Nothing is pooled across calls, and the connection is released on
//     every exit path including query failure.
//   - Identifiers are quoted per dialect; values never enter the SQL
//     text.
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"

	// database/sql drivers: "mysql", "sqlserver", "sqlite".
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"datalens/internal/model"
)

// DefaultSampleLimit bounds a table preview when the caller does not.
const DefaultSampleLimit = 1000

// Canonical dialect names accepted in source configs under "driver".
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectMSSQL    = "mssql"
	DialectSQLite   = "sqlite"
)

// Dialect canonicalizes a configured driver name. An empty name means
// postgres. Unknown names are an error so a typo cannot silently fall
// back to the wrong database.
func Dialect(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "mssql", "sqlserver":
		return DialectMSSQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("unknown database driver %q", name)
}

// BuildDSN resolves the connection string for cfg. An explicit "dsn"
// key wins; otherwise the DSN is assembled from "host", "port",
// "database", "username" and "password" (sqlite: "path" or "database"
// name the file).
func BuildDSN(dialect string, cfg model.Config) (string, error) {
	if dsn := cfg.String("dsn", ""); dsn != "" {
		return dsn, nil
	}

	db := cfg.String("database", "")

	if dialect == DialectSQLite {
		if path := cfg.String("path", ""); path != "" {
			return path, nil
		}
		if db == "" {
			return "", errors.New(`sqlite source needs "dsn", "path" or "database"`)
		}
		return db, nil
	}

	host := cfg.String("host", "")
	if host == "" || db == "" {
		return "", fmt.Errorf(`%s source needs "dsn" or "host" and "database"`, dialect)
	}
	user := cfg.String("username", "")
	pass := cfg.String("password", "")

	switch dialect {
	case DialectPostgres:
		u := url.URL{
			Scheme: "postgresql",
			Host:   fmt.Sprintf("%s:%d", host, cfg.Int("port", 5432)),
			Path:   "/" + db,
		}
		if user != "" {
			u.User = url.UserPassword(user, pass)
		}
		return u.String(), nil

	case DialectMySQL:
		// parseTime makes DATE/DATETIME scan as time.Time.
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			user, pass, host, cfg.Int("port", 3306), db), nil

	case DialectMSSQL:
		u := url.URL{
			Scheme:   "sqlserver",
			Host:     fmt.Sprintf("%s:%d", host, cfg.Int("port", 1433)),
			RawQuery: "database=" + url.QueryEscape(db),
		}
		if user != "" {
			u.User = url.UserPassword(user, pass)
		}
		return u.String(), nil
	}
	return "", fmt.Errorf("unknown dialect %q", dialect)
}

// SampleQuery returns the bounded preview statement for one table.
// table may be schema-qualified ("public.orders", "dbo.orders").
func SampleQuery(dialect, table string, limit int) string {
	t := quoteTable(dialect, table)
	if dialect == DialectMSSQL {
		return fmt.Sprintf("SELECT TOP %d * FROM %s", limit, t)
	}
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", t, limit)
}

// Sample reads up to limit rows from the table named in cfg and returns
// the column names in result-set order plus one keyed record per row.
func Sample(ctx context.Context, cfg model.Config, limit int) ([]string, []map[string]any, error) {
	dialect, err := Dialect(cfg.String("driver", ""))
	if err != nil {
		return nil, nil, err
	}
	table := cfg.String("table", "")
	if table == "" {
		return nil, nil, errors.New(`source config carries no "table"`)
	}
	dsn, err := BuildDSN(dialect, cfg)
	if err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		limit = DefaultSampleLimit
	}

	if dialect == DialectPostgres {
		return SamplePostgres(ctx, dsn, table, limit)
	}
	return SampleTable(ctx, dialect, dsn, table, limit)
}

// SamplePostgres samples a table over a dedicated pgx connection.
func SamplePostgres(ctx context.Context, dsn, table string, limit int) ([]string, []map[string]any, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, SampleQuery(DialectPostgres, table, limit))
	if err != nil {
		return nil, nil, fmt.Errorf("sample %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var recs []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			rec[c] = normalizeValue(vals[i])
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, recs, nil
}

// SampleTable samples a table through database/sql using the driver
// registered for dialect.
func SampleTable(ctx context.Context, dialect, dsn, table string, limit int) ([]string, []map[string]any, error) {
	db, err := sql.Open(sqlDriverName(dialect), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	return SampleDB(ctx, db, dialect, table, limit)
}

// SampleDB runs the preview query on an existing handle. Split out so
// the row conversion is testable without a live database.
func SampleDB(ctx context.Context, db *sql.DB, dialect, table string, limit int) ([]string, []map[string]any, error) {
	rows, err := db.QueryContext(ctx, SampleQuery(dialect, table, limit))
	if err != nil {
		return nil, nil, fmt.Errorf("sample %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	var recs []map[string]any
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			rec[c] = normalizeValue(vals[i])
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, recs, nil
}

// Ping verifies that the source described by cfg is reachable.
func Ping(ctx context.Context, cfg model.Config) error {
	dialect, err := Dialect(cfg.String("driver", ""))
	if err != nil {
		return err
	}
	dsn, err := BuildDSN(dialect, cfg)
	if err != nil {
		return err
	}

	if dialect == DialectPostgres {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return err
		}
		defer conn.Close(ctx)
		return conn.Ping(ctx)
	}

	db, err := sql.Open(sqlDriverName(dialect), dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}

func sqlDriverName(dialect string) string {
	if dialect == DialectMSSQL {
		return "sqlserver"
	}
	return dialect
}

// normalizeValue folds driver-specific scan results into the generic
// record vocabulary: []byte becomes string, everything else passes
// through (int64, float64, bool, time.Time, nil).
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// quoteTable quotes each dot-separated part of a possibly qualified
// table name for the dialect.
func quoteTable(dialect, table string) string {
	parts := strings.Split(table, ".")
	for i := range parts {
		parts[i] = quoteIdent(dialect, strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

func quoteIdent(dialect, name string) string {
	switch dialect {
	case DialectPostgres:
		return pgx.Identifier{name}.Sanitize()
	case DialectMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case DialectMSSQL:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}
