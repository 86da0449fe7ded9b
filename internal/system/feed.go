package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/remineration/internal/core/ecs"
	"github.com/l1jgo/remineration/internal/core/event"
	coresys "github.com/l1jgo/remineration/internal/core/system"
	"github.com/l1jgo/remineration/internal/net"
	"github.com/l1jgo/remineration/internal/world"
)

// Ticker reports the current tick number.
type Ticker interface {
	Ticks() uint64
}

// FeedSystem broadcasts node and respawn events to websocket observers and
// flushes their output once per tick. Phase 4 (Output).
type FeedSystem struct {
	server *net.Server
	store  *net.SessionStore
	world  *world.State
	ticker Ticker
	name   string
	log    *zap.Logger
}

func NewFeedSystem(server *net.Server, store *net.SessionStore, bus *event.Bus, ws *world.State, ticker Ticker, name string, log *zap.Logger) *FeedSystem {
	s := &FeedSystem{
		server: server,
		store:  store,
		world:  ws,
		ticker: ticker,
		name:   name,
		log:    log.Named("feed"),
	}
	event.Subscribe(bus, func(ev event.NodeSpawned) {
		s.broadcast(net.MsgNodeSpawned, net.FromNodeSpawned(ev))
	})
	event.Subscribe(bus, func(ev event.NodeDepleted) {
		s.broadcast(net.MsgNodeDepleted, net.FromNodeDepleted(ev))
	})
	event.Subscribe(bus, func(ev event.RespawnCompleted) {
		s.broadcast(net.MsgRespawnCompleted, net.FromRespawnCompleted(ev))
	})
	return s
}

func (s *FeedSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *FeedSystem) Update(_ time.Duration) {
	s.acceptSessions()

	s.reapSessions()

	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}

func (s *FeedSystem) acceptSessions() {
	for {
		select {
		case sess := <-s.server.NewSessions():
			s.store.Add(sess)
			s.sendSnapshot(sess)
		default:
			return
		}
	}
}

// sendSnapshot greets a new observer and replays every live node.
func (s *FeedSystem) sendSnapshot(sess *net.Session) {
	tick := s.ticker.Ticks()
	if msg, err := net.Encode(net.MsgHello, tick, net.Hello{
		Server: s.name,
		Nodes:  len(s.world.NodeIDs()),
	}); err == nil {
		sess.Send(msg)
	}
	s.world.EachNode(func(id ecs.EntityID, n *world.OreNode, tr *world.Transform) {
		if n.Depleted {
			return
		}
		msg, err := net.Encode(net.MsgNodeSpawned, tick, net.FromNodeSpawned(event.NodeSpawned{
			Node:     id,
			Position: tr.Position,
			Rotation: tr.Rotation,
			Prefab:   n.Prefab,
		}))
		if err != nil {
			return
		}
		sess.Send(msg)
	})
}

func (s *FeedSystem) reapSessions() {
	for {
		select {
		case id := <-s.server.DeadSessions():
			s.store.Remove(id)
		default:
			return
		}
	}
}

// broadcast encodes once and buffers the message on every open session.
func (s *FeedSystem) broadcast(typ string, data any) {
	if s.store.Count() == 0 {
		return
	}
	msg, err := net.Encode(typ, s.ticker.Ticks(), data)
	if err != nil {
		s.log.Error("encode feed message", zap.String("type", typ), zap.Error(err))
		return
	}
	s.store.ForEach(func(sess *net.Session) {
		sess.Send(msg)
	})
}

// Shutdown flushes pending output and closes every observer.
func (s *FeedSystem) Shutdown() {
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
	s.store.CloseAll()
}
