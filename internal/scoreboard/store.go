package scoreboard

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/migrate"
	_ "modernc.org/sqlite"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/scoreboard/migrations"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is an append-only table of completed attempts.
type Store interface {
	Record(ctx context.Context, e domain.ScoreboardEntry) error
	Top(ctx context.Context, challengeID string, limit int) ([]domain.ScoreboardEntry, error)
	Close() error
}

// OpenDB opens a bun database for the driver. It is used for migrations and, with SQLite,
// as the store itself.
func OpenDB(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverPostgres:
		cc, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		return bun.NewDB(stdlib.OpenDB(*cc), pgdialect.New()), nil

	case DriverSQLite:
		sqldb, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// One writer at a time; busy_timeout covers other processes sharing the file.
		sqldb.SetMaxOpenConns(1)
		for _, p := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
			if _, err := sqldb.Exec(p); err != nil {
				_ = sqldb.Close()
				return nil, fmt.Errorf("sqlite %s: %w", p, err)
			}
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil

	default:
		return nil, fmt.Errorf("unknown scoreboard driver %q", driver)
	}
}

// Migrate applies all pending scoreboard migrations.
func Migrate(ctx context.Context, db *bun.DB) error {
	m := migrate.NewMigrator(db, migrations.Migrations)

	if err := m.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	group, err := m.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if !group.IsZero() {
		slog.InfoContext(ctx, "scoreboard: migrated", "group", group.String())
	}
	return nil
}

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, e domain.ScoreboardEntry) error {
	const stmt = `
INSERT INTO scoreboard (username, challenge_id, score, time_taken_seconds, recorded_at)
VALUES ($1, $2, $3, $4, $5);`

	if _, err := s.db.Exec(ctx, stmt, e.Username, e.ChallengeID, e.Score, e.ElapsedSeconds, e.RecordedAt); err != nil {
		return fmt.Errorf("insert scoreboard entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Top(ctx context.Context, challengeID string, limit int) ([]domain.ScoreboardEntry, error) {
	const stmt = `
SELECT username, score, time_taken_seconds, recorded_at
FROM scoreboard
WHERE challenge_id = $1
ORDER BY score DESC, time_taken_seconds ASC, id ASC
LIMIT $2;`

	rows, err := s.db.Query(ctx, stmt, challengeID, limit)
	if err != nil {
		return nil, fmt.Errorf("query scoreboard: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.ScoreboardEntry, error) {
		e := domain.ScoreboardEntry{ChallengeID: challengeID}
		if err := r.Scan(&e.Username, &e.Score, &e.ElapsedSeconds, &e.RecordedAt); err != nil {
			return domain.ScoreboardEntry{}, err
		}
		return e, nil
	})
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

type entryRow struct {
	bun.BaseModel `bun:"table:scoreboard"`

	ID             int64     `bun:"id,pk,autoincrement"`
	Username       string    `bun:"username,notnull"`
	ChallengeID    string    `bun:"challenge_id,notnull"`
	Score          int       `bun:"score,notnull"`
	ElapsedSeconds int64     `bun:"time_taken_seconds,notnull"`
	RecordedAt     time.Time `bun:"recorded_at,notnull"`
}

// BunStore keeps the scoreboard through bun. It serves the SQLite driver.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

func (s *BunStore) Record(ctx context.Context, e domain.ScoreboardEntry) error {
	row := &entryRow{
		Username:       e.Username,
		ChallengeID:    e.ChallengeID,
		Score:          e.Score,
		ElapsedSeconds: e.ElapsedSeconds,
		RecordedAt:     e.RecordedAt.UTC(),
	}

	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert scoreboard entry: %w", err)
	}
	return nil
}

func (s *BunStore) Top(ctx context.Context, challengeID string, limit int) ([]domain.ScoreboardEntry, error) {
	var rows []entryRow

	err := s.db.NewSelect().
		Model(&rows).
		Where("challenge_id = ?", challengeID).
		OrderExpr("score DESC, time_taken_seconds ASC, id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("query scoreboard: %w", err)
	}

	out := make([]domain.ScoreboardEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.ScoreboardEntry{
			Username:       r.Username,
			ChallengeID:    r.ChallengeID,
			Score:          r.Score,
			ElapsedSeconds: r.ElapsedSeconds,
			RecordedAt:     r.RecordedAt,
		})
	}
	return out, nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}
