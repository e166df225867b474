package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"yacht-twin/monitor/internal/domain"
	"yacht-twin/monitor/internal/metrics"
)

// SampleWriter persists a batch of samples. *store.TimescaleStore satisfies it.
type SampleWriter interface {
	BatchInsert(ctx context.Context, msgs []*domain.TelemetrySample) error
}

type DBWriter struct {
	ch         <-chan *domain.TelemetrySample
	db         SampleWriter
	batchSize  int
	flushMS    int
	retryDelay time.Duration
	logger     zerolog.Logger
}

func NewDBWriter(
	ch <-chan *domain.TelemetrySample,
	db SampleWriter,
	batchSize int,
	flushMS int,
	logger zerolog.Logger,
) *DBWriter {
	if batchSize <= 0 {
		batchSize = 1
	}
	if flushMS <= 0 {
		flushMS = 1000
	}
	return &DBWriter{
		ch:         ch,
		db:         db,
		batchSize:  batchSize,
		flushMS:    flushMS,
		retryDelay: 500 * time.Millisecond,
		logger:     logger.With().Str("component", "db_writer").Logger(),
	}
}

func (w *DBWriter) Run(ctx context.Context) error {
	batch := make([]*domain.TelemetrySample, 0, w.batchSize)
	ticker := time.NewTicker(time.Duration(w.flushMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-w.ch:
			if !ok {
				if len(batch) > 0 {
					w.flush(context.WithoutCancel(ctx), batch)
				}
				return nil
			}
			batch = append(batch, msg)
			if len(batch) >= w.batchSize {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			if len(batch) > 0 {
				w.flush(context.WithoutCancel(ctx), batch)
			}
			return nil
		}
	}
}

func (w *DBWriter) flush(ctx context.Context, batch []*domain.TelemetrySample) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := w.db.BatchInsert(ctx, batch)
	if err != nil {
		w.logger.Warn().Err(err).Int("batch", len(batch)).Msg("db write failed, retrying")
		time.Sleep(w.retryDelay)
		err = w.db.BatchInsert(ctx, batch)
		if err != nil {
			w.logger.Error().Err(err).Int("batch", len(batch)).Msg("db write permanently failed")
			metrics.DBWriteFailures.Add(float64(len(batch)))
			return
		}
	}
	metrics.DBWriteSuccess.Add(float64(len(batch)))
}
