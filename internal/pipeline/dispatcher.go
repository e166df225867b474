package pipeline

import (
	"yacht-twin/monitor/internal/domain"
	"yacht-twin/monitor/internal/metrics"
)

// Dispatcher fans each telemetry sample out to the persistence and
// streaming sinks without ever blocking the loop. A nil channel means the
// sink is disabled.
type Dispatcher struct {
	DBChan     chan *domain.TelemetrySample
	StateChan  chan *domain.TelemetrySample
	AlertChan  chan *domain.TelemetrySample
	StreamChan chan *domain.TelemetrySample
}

// NewDispatcher creates one buffered channel per positive size.
func NewDispatcher(dbSize, stateSize, alertSize, streamSize int) *Dispatcher {
	return &Dispatcher{
		DBChan:     makeChan(dbSize),
		StateChan:  makeChan(stateSize),
		AlertChan:  makeChan(alertSize),
		StreamChan: makeChan(streamSize),
	}
}

func makeChan(size int) chan *domain.TelemetrySample {
	if size <= 0 {
		return nil
	}
	return make(chan *domain.TelemetrySample, size)
}

func (d *Dispatcher) Dispatch(msg *domain.TelemetrySample) {
	offer(d.DBChan, msg, "db")
	offer(d.StateChan, msg, "state")
	if msg.Point.Tier.Alerting() {
		offer(d.AlertChan, msg, "alert")
	}
	offer(d.StreamChan, msg, "stream")
}

func offer(ch chan *domain.TelemetrySample, msg *domain.TelemetrySample, sink string) {
	if ch == nil {
		return
	}
	select {
	case ch <- msg:
	default:
		metrics.ChannelDrops.WithLabelValues(sink).Inc()
	}
}

// Close closes every enabled channel so the workers drain and exit.
func (d *Dispatcher) Close() {
	for _, ch := range []chan *domain.TelemetrySample{d.DBChan, d.StateChan, d.AlertChan, d.StreamChan} {
		if ch != nil {
			close(ch)
		}
	}
}
