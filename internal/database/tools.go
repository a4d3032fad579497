package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// SeedResult reports one executed statement. Err is nil on success.
type SeedResult struct {
	Statement string
	Err       error
}

// Seed runs script statement by statement and keeps going after failures so
// one bad row does not hide the rest.
func Seed(ctx context.Context, db *sql.DB, script string) []SeedResult {
	stmts := splitStatements(script)
	results := make([]SeedResult, 0, len(stmts))
	for _, stmt := range stmts {
		_, err := db.ExecContext(ctx, stmt)
		results = append(results, SeedResult{Statement: stmt, Err: err})
	}
	return results
}

// splitStatements drops "--" comment lines and splits on ";". Semicolons inside
// string literals are not supported.
func splitStatements(script string) []string {
	var b strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	var out []string
	for _, part := range strings.Split(b.String(), ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Reset drops every table. FOREIGN_KEY_CHECKS is a session variable, so the
// whole operation runs on one connection.
func Reset(ctx context.Context, db *sql.DB) ([]string, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire connection")
	}
	defer conn.Close()

	tables, err := listTables(ctx, conn)
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
		return nil, errors.Wrap(err, "disable foreign key checks")
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SET FOREIGN_KEY_CHECKS = 1")
	}()

	dropped := make([]string, 0, len(tables))
	for _, t := range tables {
		if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(t)); err != nil {
			return dropped, errors.Wrapf(err, "drop table %s", t)
		}
		dropped = append(dropped, t)
	}
	return dropped, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listTables(ctx context.Context, q queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, errors.Wrap(err, "show tables")
	}
	defer rows.Close()
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scan table name")
		}
		tables = append(tables, name)
	}
	return tables, errors.Wrap(rows.Err(), "iterate tables")
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

type TableCount struct {
	Name string
	Rows int64
}

// PersonSample is a short line about a customer or employee row.
type PersonSample struct {
	FirstName   string
	LastName    string
	AccountType string
}

func (p PersonSample) String() string {
	return fmt.Sprintf("%s %s (%s)", p.FirstName, p.LastName, p.AccountType)
}

type VerifyReport struct {
	Tables    []TableCount
	Customers []PersonSample
	Employees []PersonSample
}

// Verify counts rows per table and samples up to five customers and employees.
func Verify(ctx context.Context, db *sql.DB) (VerifyReport, error) {
	var rep VerifyReport
	tables, err := listTables(ctx, db)
	if err != nil {
		return rep, err
	}
	for _, t := range tables {
		var n int64
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(t)).Scan(&n); err != nil {
			return rep, errors.Wrapf(err, "count %s", t)
		}
		rep.Tables = append(rep.Tables, TableCount{Name: t, Rows: n})
	}
	if rep.Customers, err = samplePeople(ctx, db, "customer"); err != nil {
		return rep, err
	}
	if rep.Employees, err = samplePeople(ctx, db, "employee"); err != nil {
		return rep, err
	}
	return rep, nil
}

func samplePeople(ctx context.Context, db *sql.DB, table string) ([]PersonSample, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT first_name, last_name, account_type FROM "+quoteIdent(table)+" LIMIT 5")
	if err != nil {
		return nil, errors.Wrapf(err, "sample %s", table)
	}
	defer rows.Close()
	var out []PersonSample
	for rows.Next() {
		var p PersonSample
		if err := rows.Scan(&p.FirstName, &p.LastName, &p.AccountType); err != nil {
			return nil, errors.Wrapf(err, "scan %s", table)
		}
		out = append(out, p)
	}
	return out, errors.Wrapf(rows.Err(), "iterate %s", table)
}

type ServerInfo struct {
	Database string
	Version  string
	Tables   []string
}

// Info reports which database the connection landed in.
func Info(ctx context.Context, db *sql.DB) (ServerInfo, error) {
	var info ServerInfo
	var name sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT DATABASE(), VERSION()").Scan(&name, &info.Version); err != nil {
		return info, errors.Wrap(err, "query server info")
	}
	info.Database = name.String
	tables, err := listTables(ctx, db)
	if err != nil {
		return info, err
	}
	info.Tables = tables
	return info, nil
}
