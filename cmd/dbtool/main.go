package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
)

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: dbtool <rls-smoke|pricebook-smoke|expense-smoke> [args]")
	}

	switch os.Args[1] {
	case "rls-smoke":
		rlsSmoke(os.Args[2:])
	case "pricebook-smoke":
		pricebookSmoke(os.Args[2:])
	case "expense-smoke":
		expenseSmoke(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
}

func rlsSmoke(args []string) {
	fs := flag.NewFlagSet("rls-smoke", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	fs.StringVar(&url, "url", "", "postgres connection string")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	_ = tryEnsureRole(ctx, conn, "app_nobypassrls")

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	_ = trySetRole(ctx, tx, "app_nobypassrls")
	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE rls_smoke (org_id uuid NOT NULL, val text NOT NULL);`); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `ALTER TABLE rls_smoke ENABLE ROW LEVEL SECURITY;`); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `ALTER TABLE rls_smoke FORCE ROW LEVEL SECURITY;`); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `
CREATE POLICY org_isolation ON rls_smoke
USING (org_id = public.current_org_id())
WITH CHECK (org_id = public.current_org_id());`); err != nil {
		fatal(err)
	}

	if _, err := tx.Exec(ctx, `SAVEPOINT sp_failclosed;`); err != nil {
		fatal(err)
	}
	_, err = tx.Exec(ctx, `SELECT count(*) FROM rls_smoke;`)
	if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT sp_failclosed;`); rbErr != nil {
		fatal(rbErr)
	}
	if err == nil {
		fatalf("expected fail-closed error when app.current_org is missing")
	}

	orgA := "00000000-0000-0000-0000-00000000000a"
	orgB := "00000000-0000-0000-0000-00000000000b"
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_org', $1, true);`, orgA); err != nil {
		fatal(err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO rls_smoke (org_id, val) VALUES ($1, 'a');`, orgA); err != nil {
		fatal(err)
	}

	if _, err := tx.Exec(ctx, `SAVEPOINT sp_cross_insert;`); err != nil {
		fatal(err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO rls_smoke (org_id, val) VALUES ($1, 'b');`, orgB)
	if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT sp_cross_insert;`); rbErr != nil {
		fatal(rbErr)
	}
	if err == nil {
		fatalf("expected RLS rejection on cross-org insert")
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM rls_smoke;`).Scan(&count); err != nil {
		fatal(err)
	}
	if count != 1 {
		fatalf("expected count=1 under org A, got %d", count)
	}

	if err := tx.Commit(ctx); err != nil {
		fatal(err)
	}

	tx2, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx2.Rollback(context.Background()) }()

	_ = trySetRole(ctx, tx2, "app_nobypassrls")
	if _, err := tx2.Exec(ctx, `SELECT set_config('app.current_org', $1, true);`, orgB); err != nil {
		fatal(err)
	}
	if err := tx2.QueryRow(ctx, `SELECT count(*) FROM rls_smoke;`).Scan(&count); err != nil {
		fatal(err)
	}
	if count != 0 {
		fatalf("expected count=0 under org B, got %d", count)
	}
	if _, err := tx2.Exec(ctx, `INSERT INTO rls_smoke (org_id, val) VALUES ($1, 'b');`, orgB); err != nil {
		fatal(err)
	}
	if err := tx2.QueryRow(ctx, `SELECT count(*) FROM rls_smoke;`).Scan(&count); err != nil {
		fatal(err)
	}
	if count != 1 {
		fatalf("expected count=1 after insert under org B, got %d", count)
	}

	if err := tx2.Commit(ctx); err != nil {
		fatal(err)
	}

	fmt.Println("[rls-smoke] OK")
}

// pricebookSmoke writes one item and two observations under a scratch
// organization, checks that the latest observation wins and that history
// comes back ascending, then rolls everything back.
func pricebookSmoke(args []string) {
	fs := flag.NewFlagSet("pricebook-smoke", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	fs.StringVar(&url, "url", "", "postgres connection string")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	orgID := "00000000-0000-0000-0000-00000000d00a"
	itemID := "00000000-0000-0000-0000-00000000d0a1"

	if _, err := tx.Exec(ctx, `
INSERT INTO pricebook.items (item_id, org_id, name, unit, category)
VALUES ($1::uuid, $2::uuid, 'dbtool smoke item', 'kg', 'smoke')
ON CONFLICT (org_id, item_id)
DO UPDATE SET name = EXCLUDED.name;`, itemID, orgID); err != nil {
		fatal(err)
	}

	for _, obs := range []struct {
		price float64
		day   string
	}{
		{10.50, "2026-01-01"},
		{12.25, "2026-02-01"},
	} {
		if _, err := tx.Exec(ctx, `
INSERT INTO pricebook.price_points (org_id, item_id, price, currency, observed_on, recorded_at)
VALUES ($1::uuid, $2::uuid, $3, 'USD', $4::date, now());`, orgID, itemID, obs.price, obs.day); err != nil {
			fatal(err)
		}
	}

	var latest float64
	if err := tx.QueryRow(ctx, `
SELECT price
FROM pricebook.price_points
WHERE org_id = $1::uuid AND item_id = $2::uuid
ORDER BY observed_on DESC, recorded_at DESC
LIMIT 1;`, orgID, itemID).Scan(&latest); err != nil {
		fatal(err)
	}
	if latest != 12.25 {
		fatalf("expected latest price 12.25, got %v", latest)
	}

	rows, err := tx.Query(ctx, `
SELECT price
FROM pricebook.price_points
WHERE org_id = $1::uuid AND item_id = $2::uuid
ORDER BY observed_on ASC, recorded_at ASC;`, orgID, itemID)
	if err != nil {
		fatal(err)
	}
	var history []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			fatal(err)
		}
		history = append(history, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		fatal(err)
	}
	if len(history) != 2 || history[0] != 10.50 || history[1] != 12.25 {
		fatalf("unexpected history %v", history)
	}

	// Scratch data only; never commit.
	if err := tx.Rollback(ctx); err != nil {
		fatal(err)
	}

	fmt.Println("[pricebook-smoke] OK")
}

// expenseSmoke records expenses in two different months under a scratch
// organization and checks the monthly rollup, then rolls everything back.
func expenseSmoke(args []string) {
	fs := flag.NewFlagSet("expense-smoke", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	fs.StringVar(&url, "url", "", "postgres connection string")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	orgID := "00000000-0000-0000-0000-00000000e00a"

	for i, row := range []struct {
		amount float64
		day    string
	}{
		{100, "2026-01-05"},
		{50, "2026-01-20"},
		{75, "2026-02-03"},
	} {
		expenseID := fmt.Sprintf("00000000-0000-0000-0000-00000000e1%02d", i)
		if _, err := tx.Exec(ctx, `
INSERT INTO expense.expenses (expense_id, org_id, vendor, category, amount, currency, spent_on, memo, template_id)
VALUES ($1::uuid, $2::uuid, 'dbtool smoke vendor', 'smoke', $3, 'USD', $4::date, '', NULL);`, expenseID, orgID, row.amount, row.day); err != nil {
			fatal(err)
		}
	}

	rows, err := tx.Query(ctx, `
SELECT to_char(date_trunc('month', spent_on), 'YYYY-MM') AS month, sum(amount)::float8, count(*)
FROM expense.expenses
WHERE org_id = $1::uuid
GROUP BY 1
ORDER BY 1 ASC;`, orgID)
	if err != nil {
		fatal(err)
	}
	type monthTotal struct {
		month string
		total float64
		count int
	}
	var months []monthTotal
	for rows.Next() {
		var m monthTotal
		if err := rows.Scan(&m.month, &m.total, &m.count); err != nil {
			rows.Close()
			fatal(err)
		}
		months = append(months, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		fatal(err)
	}

	if len(months) != 2 {
		fatalf("expected 2 months, got %d", len(months))
	}
	if months[0].month != "2026-01" || months[0].total != 150 || months[0].count != 2 {
		fatalf("unexpected january rollup %+v", months[0])
	}
	if months[1].month != "2026-02" || months[1].total != 75 || months[1].count != 1 {
		fatalf("unexpected february rollup %+v", months[1])
	}

	// Scratch data only; never commit.
	if err := tx.Rollback(ctx); err != nil {
		fatal(err)
	}

	fmt.Println("[expense-smoke] OK")
}

func tryEnsureRole(ctx context.Context, conn *pgx.Conn, role string) error {
	if !validSQLIdent(role) {
		return fmt.Errorf("invalid role: %s", role)
	}

	stmt := fmt.Sprintf(`DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = '%s') THEN
    EXECUTE 'CREATE ROLE %s NOBYPASSRLS';
  END IF;
END
$$;`, role, role)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return err
	}
	for _, schema := range []string{"public", "iam", "pricebook", "expense"} {
		_, _ = conn.Exec(ctx, `GRANT USAGE ON SCHEMA `+schema+` TO `+role+`;`)
		_, _ = conn.Exec(ctx, `GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA `+schema+` TO `+role+`;`)
		_, _ = conn.Exec(ctx, `GRANT USAGE, SELECT ON ALL SEQUENCES IN SCHEMA `+schema+` TO `+role+`;`)
		_, _ = conn.Exec(ctx, `GRANT EXECUTE ON ALL FUNCTIONS IN SCHEMA `+schema+` TO `+role+`;`)
		_, _ = conn.Exec(ctx, `ALTER DEFAULT PRIVILEGES IN SCHEMA `+schema+` GRANT USAGE, SELECT ON SEQUENCES TO `+role+`;`)
	}
	return nil
}

func trySetRole(ctx context.Context, tx pgx.Tx, role string) bool {
	if _, err := tx.Exec(ctx, `SET ROLE `+role+`;`); err != nil {
		return false
	}
	return true
}

var reSQLIdent = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validSQLIdent(s string) bool {
	return reSQLIdent.MatchString(s)
}

func fatal(err error) {
	if err == nil {
		os.Exit(1)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
