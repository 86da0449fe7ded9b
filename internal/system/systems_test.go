package system

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/l1jgo/remineration/internal/config"
	"github.com/l1jgo/remineration/internal/core/ecs"
	"github.com/l1jgo/remineration/internal/core/event"
	coresys "github.com/l1jgo/remineration/internal/core/system"
	"github.com/l1jgo/remineration/internal/core/timer"
	"github.com/l1jgo/remineration/internal/data"
	"github.com/l1jgo/remineration/internal/net"
	"github.com/l1jgo/remineration/internal/ore"
	"github.com/l1jgo/remineration/internal/persist"
	"github.com/l1jgo/remineration/internal/scripting"
	"github.com/l1jgo/remineration/internal/world"
)

const (
	tick      = 200 * time.Millisecond
	sulfurOre = "assets/bundled/prefabs/autospawn/resource/ores_sand/sulfur-ore.prefab"
)

type fixedRules struct{}

func (fixedRules) NodeCapacity(string, string) int { return 30 }

func (fixedRules) CalcHarvestYield(scripting.HarvestContext) scripting.HarvestResult {
	return scripting.HarvestResult{Amount: 10}
}

type memWriter struct {
	entries []persist.RespawnLogEntry
	err     error
	calls   int
}

func (w *memWriter) Write(_ context.Context, entries []persist.RespawnLogEntry) error {
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.entries = append(w.entries, entries...)
	return nil
}

type fixedTicker uint64

func (t fixedTicker) Ticks() uint64 { return uint64(t) }

// flatState is a dry 64x64 plain with no topology flags.
func flatState(t *testing.T, bus *event.Bus) *world.State {
	t.Helper()
	const n = 33
	heights := make([]float64, n*n)
	for i := range heights {
		heights[i] = 10
	}
	terrain := data.NewTerrain(data.TerrainInfo{Name: "flat", CellSize: 2, Width: n, Depth: n, WaterLevel: 0},
		heights, make([]uint32, n*n))
	return world.NewState(terrain, bus, fixedRules{}, zap.NewNop())
}

func TestHarvestDepletesAndRespawns(t *testing.T) {
	bus := event.NewBus()
	ws := flatState(t, bus)
	clock := timer.New()
	rng := rand.New(rand.NewPCG(11, 12))

	cfg := config.Defaults().Respawn
	cfg.DelaySeconds = 1
	cfg.MinNodes, cfg.MaxNodes, cfg.ChancePercent = 1, 1, 100

	finder := ore.NewFinder(ws, rng, ore.FinderOptions{ProbeRange: cfg.GroundProbeRange, CheckRadius: cfg.CheckRadius})
	sched := ore.NewScheduler(cfg, clock, finder, ws, rng, bus, zap.NewNop())
	event.Subscribe(bus, sched.Handle)

	writer := &memWriter{}
	harvest := NewHarvestSystem(ws, rng, "pickaxe", 1, zap.NewNop())
	runner := coresys.NewRunner()
	runner.Register(NewCleanupSystem(ws))
	runner.Register(NewAuditSystem(bus, writer, 1, zap.NewNop()))
	runner.Register(NewTimerSystem(clock))
	runner.Register(NewEventDispatchSystem(bus))
	runner.Register(harvest)

	origin, err := ws.SpawnNode(sulfurOre, mgl64.Vec3{32, 10, 32}, mgl64.QuatIdent())
	require.NoError(t, err)
	require.Equal(t, 1, harvest.AddHarvesters(1))

	for i := 0; i < 3; i++ {
		runner.Tick(tick)
	}
	assert.False(t, ws.Alive(origin), "three swings of 10 empty a node of 30")
	assert.True(t, sched.IsPending(origin))

	for i := 0; i < 10 && len(writer.entries) == 0; i++ {
		runner.Tick(tick)
	}
	require.NotEmpty(t, writer.entries)
	e := writer.entries[0]
	assert.Equal(t, uint64(origin), e.OriginNode)
	assert.Equal(t, sulfurOre, e.Prefab)
	assert.Equal(t, 1, e.Rolled)
	assert.Equal(t, 1, e.Attempted)
	require.Len(t, e.Spawned, 1)

	pos, ok := ws.Position(ecs.EntityID(e.Spawned[0]))
	if ok {
		d := ore.HorizontalDistance(mgl64.Vec3{32, 10, 32}, pos)
		assert.GreaterOrEqual(t, d, cfg.MinRadius)
		assert.LessOrEqual(t, d, cfg.MaxRadius)
	}
}

func TestHarvestWithoutNodesIsIdle(t *testing.T) {
	bus := event.NewBus()
	ws := flatState(t, bus)
	h := NewHarvestSystem(ws, rand.New(rand.NewPCG(1, 2)), "rock", 2, zap.NewNop())
	require.Equal(t, 2, h.AddHarvesters(2))

	h.Update(tick)
	h.Update(tick)
	for _, id := range ws.PlayerIDs() {
		p, _ := ws.Player(id)
		assert.True(t, p.Target.IsZero())
		assert.Zero(t, p.Swings)
	}
}

func TestAuditKeepsEntriesOnFailure(t *testing.T) {
	bus := event.NewBus()
	writer := &memWriter{err: errors.New("connection refused")}
	audit := NewAuditSystem(bus, writer, 2, zap.NewNop())

	event.Emit(bus, event.RespawnCompleted{Origin: ecs.NewEntityID(1, 1), Prefab: sulfurOre, Rolled: 2})
	bus.SwapBuffers()
	bus.DispatchAll()
	assert.Equal(t, 1, audit.Buffered())

	audit.Update(tick)
	assert.Zero(t, writer.calls, "interval not reached")
	audit.Update(tick)
	assert.Equal(t, 1, writer.calls)
	assert.Equal(t, 1, audit.Buffered())

	writer.err = nil
	require.NoError(t, audit.Flush(context.Background()))
	assert.Zero(t, audit.Buffered())
	require.Len(t, writer.entries, 1)
	assert.Zero(t, writer.entries[0].Tick, "stamped when recorded")
	assert.Equal(t, 2, writer.entries[0].Rolled)
}

func TestAuditBacklogIsBounded(t *testing.T) {
	bus := event.NewBus()
	audit := NewAuditSystem(bus, &memWriter{}, 1, zap.NewNop())
	for i := 0; i < maxBuffered+10; i++ {
		event.Emit(bus, event.RespawnCompleted{Origin: ecs.NewEntityID(uint32(i), 1)})
	}
	bus.SwapBuffers()
	bus.DispatchAll()
	assert.Equal(t, maxBuffered, audit.Buffered())
	assert.Equal(t, uint64(ecs.NewEntityID(10, 1)), audit.buf[0].OriginNode)
}

func TestFeedBroadcastsEvents(t *testing.T) {
	bus := event.NewBus()
	ws := flatState(t, bus)
	srv := net.NewServer(config.NetConfig{OutQueueSize: 16, WriteTimeout: time.Second}, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	feed := NewFeedSystem(srv, net.NewSessionStore(), bus, ws, fixedTicker(42), "test", zap.NewNop())

	existing, err := ws.SpawnNode(sulfurOre, mgl64.Vec3{40, 10, 40}, mgl64.QuatIdent())
	require.NoError(t, err)
	bus.SwapBuffers()
	bus.DispatchAll()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+net.FeedPath, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() net.Envelope {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		env, err := net.Decode(data)
		require.NoError(t, err)
		return env
	}

	require.Eventually(t, func() bool {
		feed.Update(tick)
		return feed.store.Count() == 1
	}, 2*time.Second, 10*time.Millisecond)
	hello := read()
	assert.Equal(t, net.MsgHello, hello.Type)
	assert.Equal(t, uint64(42), hello.Tick)

	snapshot := read()
	assert.Equal(t, net.MsgNodeSpawned, snapshot.Type)
	var node net.NodeSpawnedMsg
	require.NoError(t, json.Unmarshal(snapshot.Data, &node))
	assert.Equal(t, existing.String(), node.Node)

	_, err = ws.SpawnNode(sulfurOre, mgl64.Vec3{20, 10, 20}, mgl64.QuatIdent())
	require.NoError(t, err)
	bus.SwapBuffers()
	bus.DispatchAll()
	feed.Update(tick)

	assert.Equal(t, net.MsgNodeSpawned, read().Type)

	feed.Shutdown()
	assert.Zero(t, feed.store.Count())
}
