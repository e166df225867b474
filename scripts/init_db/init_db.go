package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"yacht-twin/monitor/internal/config"
	"yacht-twin/monitor/internal/domain"
	"yacht-twin/monitor/internal/store"
)

type statement struct {
	label string
	sql   string
}

type step struct {
	title      string
	statements []statement
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	// pool_max_conns is a pgxpool option; a single conn rejects it.
	connStr, _, _ := strings.Cut(store.ConnString(cfg), "?")

	fmt.Printf("Connecting to TimescaleDB at %s:%s/%s...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure TimescaleDB is running:\n  docker-compose up -d timescaledb", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	for i, s := range schema() {
		fmt.Printf("\n── Step %d: %s\n", i+1, s.title)
		for _, st := range s.statements {
			if _, err := conn.Exec(ctx, st.sql); err != nil {
				log.Fatalf("FAILED: %s\nError: %v\nSQL: %s", st.label, err, st.sql)
			}
			fmt.Printf("  ✓ %s\n", st.label)
		}
	}

	fmt.Println("\n── Verification")
	verify(ctx, conn)

	fmt.Println("\n✅ Hull twin schema ready")
	fmt.Println("   Run next: go run ./scripts/seed_redis")
}

func schema() []step {
	return []step{
		{
			title: "extensions",
			statements: []statement{
				{"timescaledb extension", "CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;"},
			},
		},
		{
			title: "hull_telemetry",
			statements: []statement{
				{"hull_telemetry table", `
					CREATE TABLE IF NOT EXISTS hull_telemetry (
						timestamp       TIMESTAMPTZ      NOT NULL,
						received_at     TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
						session_id      TEXT             NOT NULL,
						lc              DOUBLE PRECISION NOT NULL,
						pc              DOUBLE PRECISION NOT NULL,
						ld              DOUBLE PRECISION NOT NULL,
						bdr             DOUBLE PRECISION NOT NULL,
						lb              DOUBLE PRECISION NOT NULL,
						fr              DOUBLE PRECISION NOT NULL,
						target_fr       DOUBLE PRECISION NOT NULL,
						rr              DOUBLE PRECISION NOT NULL,
						carbon          DOUBLE PRECISION NOT NULL,
						tier            TEXT             NOT NULL,
						recommendation  TEXT             NOT NULL,
						CONSTRAINT chk_telemetry_tier CHECK (` + tierCheck("tier", allTiers()) + `)
					);`},
				// Two ticks a second; day-sized chunks keep recent reads on one chunk.
				{"hull_telemetry hypertable", `
					SELECT create_hypertable(
						'hull_telemetry',
						'timestamp',
						chunk_time_interval => INTERVAL '1 day',
						if_not_exists => TRUE
					);`},
			},
		},
		{
			title: "hull_alerts",
			statements: []statement{
				{"hull_alerts table", `
					CREATE TABLE IF NOT EXISTS hull_alerts (
						id               BIGSERIAL        PRIMARY KEY,
						session_id       TEXT             NOT NULL,
						tier             TEXT             NOT NULL,
						severity         TEXT             NOT NULL,
						rr               DOUBLE PRECISION NOT NULL,
						carbon           DOUBLE PRECISION NOT NULL,
						fr               DOUBLE PRECISION NOT NULL,
						created_at       TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
						acknowledged_at  TIMESTAMPTZ,
						acknowledged_by  TEXT,
						CONSTRAINT chk_alert_tier CHECK (` + tierCheck("tier", alertingTiers()) + `),
						CONSTRAINT chk_severity CHECK (severity IN ('INFO', 'WARNING', 'CRITICAL'))
					);`},
			},
		},
		{
			title: "indexes",
			statements: []statement{
				{"idx_telemetry_session_time (recent history per session)", `
					CREATE INDEX IF NOT EXISTS idx_telemetry_session_time
					ON hull_telemetry (session_id, timestamp DESC);`},
				{"idx_telemetry_tier_time (ticks by tier)", `
					CREATE INDEX IF NOT EXISTS idx_telemetry_tier_time
					ON hull_telemetry (tier, timestamp DESC);`},
				{"idx_alerts_session (alerts per session)", `
					CREATE INDEX IF NOT EXISTS idx_alerts_session
					ON hull_alerts (session_id, created_at DESC);`},
				{"idx_alerts_unacknowledged (partial)", `
					CREATE INDEX IF NOT EXISTS idx_alerts_unacknowledged
					ON hull_alerts (created_at DESC)
					WHERE acknowledged_at IS NULL;`},
			},
		},
	}
}

func verify(ctx context.Context, conn *pgx.Conn) {
	var hypertable string
	err := conn.QueryRow(ctx, `
		SELECT hypertable_name
		FROM timescaledb_information.hypertables
		WHERE hypertable_name = 'hull_telemetry'
	`).Scan(&hypertable)
	if err != nil {
		log.Fatalf("hull_telemetry is not a hypertable: %v", err)
	}
	fmt.Printf("  ✓ hypertable: %s\n", hypertable)

	var alerts bool
	err = conn.QueryRow(ctx, `SELECT to_regclass('hull_alerts') IS NOT NULL`).Scan(&alerts)
	if err != nil || !alerts {
		log.Fatalf("hull_alerts was not created: %v", err)
	}
	fmt.Println("  ✓ table: hull_alerts")

	var indexes int
	err = conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM pg_indexes
		WHERE tablename IN ('hull_telemetry', 'hull_alerts') AND indexname LIKE 'idx_%'
	`).Scan(&indexes)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes: %d\n", indexes)
}

func allTiers() []domain.Tier {
	tiers := make([]domain.Tier, 0, len(domain.DefaultDecisionRules)+1)
	for _, r := range domain.DefaultDecisionRules {
		tiers = append(tiers, r.Tier)
	}
	return append(tiers, domain.TierStable)
}

func alertingTiers() []domain.Tier {
	var tiers []domain.Tier
	for _, t := range allTiers() {
		if t.Alerting() {
			tiers = append(tiers, t)
		}
	}
	return tiers
}

// tierCheck renders "col IN ('A', 'B')" for a CHECK constraint.
func tierCheck(col string, tiers []domain.Tier) string {
	quoted := make([]string, len(tiers))
	for i, t := range tiers {
		quoted[i] = "'" + string(t) + "'"
	}
	return col + " IN (" + strings.Join(quoted, ", ") + ")"
}
