package judge

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	_ "modernc.org/sqlite"

	"github.com/victornm/quizjudge/internal/domain"
)

const defaultSQLTimeout = 5 * time.Second

type DeclarativeConfig struct {
	// Timeout bounds schema setup and both queries together.
	Timeout time.Duration
}

// Declarative judges SQL queries. Every evaluation gets a private in-memory SQLite
// database built from the oracle schema. The reference query runs first; the submission
// then runs on the same connection in read-only mode, must be a single statement and
// must produce the same column names and the same rows in the same order. Values are compared by type and value with no coercion, so 1, 1.0 and '1'
// are all different.
type Declarative struct {
	timeout time.Duration
}

func NewDeclarative(c DeclarativeConfig) *Declarative {
	j := &Declarative{timeout: c.Timeout}
	if j.timeout <= 0 {
		j.timeout = defaultSQLTimeout
	}
	return j
}

type resultSet struct {
	cols []string
	rows [][]any
}

func (j *Declarative) Evaluate(ctx context.Context, o domain.DeclarativeOracle, submission string) domain.Verdict {
	if strings.TrimSpace(submission) == "" {
		return domain.Verdict{Status: domain.VerdictInvalid, Diagnostic: "Empty query."}
	}

	if n := countStatements(submission); n > 1 {
		return domain.Verdict{
			Status:     domain.VerdictIncorrect,
			Diagnostic: fmt.Sprintf("SQL Error: You can only execute one statement at a time (found %d).", n),
		}
	}

	if strings.TrimSpace(o.Query) == "" {
		return oracleError(fmt.Errorf("missing reference query"))
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return setupError("open database: %v", err)
	}
	defer db.Close()
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		return setupError("open connection: %v", err)
	}
	defer conn.Close()

	if strings.TrimSpace(o.Schema) != "" {
		if _, err := conn.ExecContext(ctx, o.Schema); err != nil {
			slog.ErrorContext(ctx, "judge: apply schema failed", "error", err)
			return oracleError(fmt.Errorf("schema: %w", err))
		}
	}

	want, err := query(ctx, conn, o.Query)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return timeoutVerdict("Query", j.timeout)
		}
		slog.ErrorContext(ctx, "judge: reference query failed", "error", err)
		return oracleError(fmt.Errorf("reference query: %w", err))
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return setupError("read-only mode: %v", err)
	}

	got, err := query(ctx, conn, submission)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return timeoutVerdict("Query", j.timeout)
		}
		return domain.Verdict{
			Status:     domain.VerdictIncorrect,
			Diagnostic: fmt.Sprintf("SQL Error: %v", err),
		}
	}

	correct := slices.Equal(got.cols, want.cols) && reflect.DeepEqual(got.rows, want.rows)

	var b strings.Builder
	renderTable(&b, got)
	if correct {
		b.WriteString("Status: Correct!")
	} else {
		b.WriteString("Status: Incorrect.")
	}

	v := domain.Verdict{
		Status:     domain.VerdictIncorrect,
		Diagnostic: b.String(),
		Passed:     correct,
	}
	if correct {
		v.Status = domain.VerdictCorrect
	}
	return v
}

func query(ctx context.Context, conn *sql.Conn, q string) (resultSet, error) {
	rows, err := conn.QueryContext(ctx, q)
	if err != nil {
		return resultSet{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return resultSet{}, err
	}

	rs := resultSet{cols: cols, rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return resultSet{}, err
		}
		rs.rows = append(rs.rows, vals)
	}

	return rs, rows.Err()
}

func renderTable(b *strings.Builder, rs resultSet) {
	b.WriteString("Your Output:\n")
	if len(rs.rows) == 0 {
		b.WriteString("Your query returned no results.\n")
		return
	}

	w := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(rs.cols, "\t"))
	for _, row := range rs.rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()

	if len(rs.rows) == 1 {
		b.WriteString("(1 row)\n")
	} else {
		fmt.Fprintf(b, "(%d rows)\n", len(rs.rows))
	}
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// countStatements counts the non-empty statements of q. Semicolons inside quotes,
// identifiers and comments do not separate statements.
func countStatements(q string) int {
	var (
		n       int
		pending bool
	)

	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case c == ';':
			pending = false
			continue
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			continue
		case c == '-' && strings.HasPrefix(q[i:], "--"):
			if j := strings.IndexByte(q[i:], '\n'); j >= 0 {
				i += j
			} else {
				i = len(q)
			}
			continue
		case c == '/' && strings.HasPrefix(q[i:], "/*"):
			if j := strings.Index(q[i+2:], "*/"); j >= 0 {
				i += j + 3
			} else {
				i = len(q)
			}
			continue
		}

		if !pending {
			pending = true
			n++
		}

		var closing byte
		switch c {
		case '\'', '"', '`':
			closing = c
		case '[':
			closing = ']'
		default:
			continue
		}
		// Doubled quotes inside a literal close and reopen it, which counts the same.
		if j := strings.IndexByte(q[i+1:], closing); j >= 0 {
			i += j + 1
		} else {
			i = len(q)
		}
	}

	return n
}
