package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/remineration/internal/core/event"
	coresys "github.com/l1jgo/remineration/internal/core/system"
	"github.com/l1jgo/remineration/internal/persist"
)

// maxBuffered caps the audit backlog while the database is unreachable.
const maxBuffered = 4096

// RespawnLogWriter persists a batch of respawn log entries.
// *persist.RespawnLogRepo implements it.
type RespawnLogWriter interface {
	Write(ctx context.Context, entries []persist.RespawnLogEntry) error
}

// AuditSystem buffers fired respawn cycles and writes them in batches every
// interval ticks. Phase 5 (Persist).
type AuditSystem struct {
	writer   RespawnLogWriter
	buf      []persist.RespawnLogEntry
	tick     uint64
	ticks    int
	interval int
	dropped  int
	log      *zap.Logger
}

func NewAuditSystem(bus *event.Bus, writer RespawnLogWriter, intervalTicks int, log *zap.Logger) *AuditSystem {
	if intervalTicks <= 0 {
		intervalTicks = 1
	}
	s := &AuditSystem{
		writer:   writer,
		interval: intervalTicks,
		log:      log.Named("audit"),
	}
	event.Subscribe(bus, s.record)
	return s
}

func (s *AuditSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *AuditSystem) record(ev event.RespawnCompleted) {
	spawned := make([]uint64, len(ev.Spawned))
	for i, id := range ev.Spawned {
		spawned[i] = uint64(id)
	}
	if len(s.buf) >= maxBuffered {
		s.buf = s.buf[1:]
		s.dropped++
	}
	s.buf = append(s.buf, persist.RespawnLogEntry{
		Tick:       s.tick,
		OriginNode: uint64(ev.Origin),
		Prefab:     ev.Prefab,
		X:          ev.Position.X(),
		Y:          ev.Position.Y(),
		Z:          ev.Position.Z(),
		Rolled:     ev.Rolled,
		Attempted:  ev.Attempted,
		Spawned:    spawned,
	})
}

func (s *AuditSystem) Update(_ time.Duration) {
	s.tick++
	s.ticks++
	if s.ticks < s.interval {
		return
	}
	s.ticks = 0

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		s.log.Error("respawn log flush failed", zap.Int("buffered", len(s.buf)), zap.Error(err))
	}
}

// Flush writes everything buffered. On error the entries are kept for the
// next attempt. Called directly on shutdown.
func (s *AuditSystem) Flush(ctx context.Context) error {
	if len(s.buf) == 0 {
		return nil
	}
	if err := s.writer.Write(ctx, s.buf); err != nil {
		return err
	}
	s.log.Debug("respawn log flushed", zap.Int("entries", len(s.buf)))
	if s.dropped > 0 {
		s.log.Warn("respawn log entries dropped while backlogged", zap.Int("dropped", s.dropped))
		s.dropped = 0
	}
	s.buf = s.buf[:0]
	return nil
}

// Buffered returns the number of entries awaiting a flush.
func (s *AuditSystem) Buffered() int { return len(s.buf) }
