package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"yacht-twin/monitor/internal/config"
	"yacht-twin/monitor/internal/domain"
)

type TimescaleStore struct {
	pool *pgxpool.Pool
}

func ConnString(cfg *config.Config) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)
}

func NewTimescaleStore(ctx context.Context, cfg *config.Config) (*TimescaleStore, error) {
	pool, err := pgxpool.New(ctx, ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &TimescaleStore{pool: pool}, nil
}

func (s *TimescaleStore) Close() {
	s.pool.Close()
}

func (s *TimescaleStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var telemetryColumns = []string{
	"timestamp",
	"session_id",
	"lc",
	"pc",
	"ld",
	"bdr",
	"lb",
	"fr",
	"target_fr",
	"rr",
	"carbon",
	"tier",
	"recommendation",
}

func telemetryRow(m *domain.TelemetrySample) []any {
	return []any{
		m.Point.Timestamp,
		m.SessionID,
		m.Params.LC,
		m.Params.PC,
		m.Params.LD,
		m.Params.BDr,
		m.Params.LB,
		m.Params.Fr,
		m.TargetFr,
		m.Point.Resistance,
		m.Point.Carbon,
		string(m.Point.Tier),
		m.Point.Recommendation,
	}
}

func (s *TimescaleStore) BatchInsert(ctx context.Context, msgs []*domain.TelemetrySample) error {
	if len(msgs) == 0 {
		return nil
	}

	rows := make([][]any, len(msgs))
	for i, m := range msgs {
		rows[i] = telemetryRow(m)
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"hull_telemetry"},
		telemetryColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("CopyFrom failed for batch of %d: %w", len(msgs), err)
	}

	return nil
}

func (s *TimescaleStore) InsertAlert(
	ctx context.Context,
	sessionID string,
	tier domain.Tier,
	severity domain.AlertSeverity,
	rr float64,
	carbon float64,
	fr float64,
) error {
	query := `
		INSERT INTO hull_alerts
			(session_id, tier, severity, rr, carbon, fr, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err := s.pool.Exec(
		ctx,
		query,
		sessionID,
		string(tier),
		string(severity),
		rr,
		carbon,
		fr,
	)
	return err
}

// RecentHistory returns the latest persisted points for a session, oldest first.
func (s *TimescaleStore) RecentHistory(ctx context.Context, sessionID string, limit int) ([]domain.HistoryPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT timestamp, rr, carbon, tier, recommendation, fr
		FROM (
			SELECT timestamp, rr, carbon, tier, recommendation, fr
			FROM hull_telemetry
			WHERE session_id = $1
			ORDER BY timestamp DESC
			LIMIT $2
		) recent
		ORDER BY timestamp ASC
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}

	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.HistoryPoint, error) {
		var (
			p    domain.HistoryPoint
			ts   time.Time
			tier string
		)
		if err := row.Scan(&ts, &p.Resistance, &p.Carbon, &tier, &p.Recommendation, &p.Speed); err != nil {
			return p, err
		}
		p.Timestamp = ts
		p.Tier = domain.Tier(tier)
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("history scan failed: %w", err)
	}
	return points, nil
}
