package net

import (
	"encoding/json"
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
)

func newFeed(t *testing.T) (*Server, string) {
	t.Helper()
	srv := NewServer(config.NetConfig{OutQueueSize: 16, WriteTimeout: time.Second}, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + FeedPath
}

func dial(t *testing.T, srv *Server, url string) (*websocket.Conn, *Session) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	select {
	case sess := <-srv.NewSessions():
		return conn, sess
	case <-time.After(2 * time.Second):
		t.Fatal("no session")
	}
	return nil, nil
}

func startFeed(t *testing.T) (*Server, *websocket.Conn, *Session) {
	t.Helper()
	srv, url := newFeed(t)
	conn, sess := dial(t, srv, url)
	return srv, conn, sess
}

func TestFeedDeliversFlushedMessages(t *testing.T) {
	_, conn, sess := startFeed(t)

	msg, err := Encode(MsgNodeSpawned, 7, FromNodeSpawned(event.NodeSpawned{
		Node:     ecs.NewEntityID(3, 1),
		Position: mgl64.Vec3{1, 2, 3},
		Rotation: mgl64.QuatIdent(),
		Prefab:   "assets/bundled/prefabs/autospawn/resource/ores/stone-ore.prefab",
	}))
	require.NoError(t, err)

	sess.Send(msg)
	assert.Empty(t, sess.OutQueue, "nothing is queued before FlushOutput")
	sess.FlushOutput()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	env, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, MsgNodeSpawned, env.Type)
	assert.Equal(t, uint64(7), env.Tick)

	var got NodeSpawnedMsg
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "3:1", got.Node)
	assert.Equal(t, [3]float64{1, 2, 3}, got.Position)
	assert.Equal(t, [4]float64{1, 0, 0, 0}, got.Rotation)
}

func TestFeedReportsDisconnect(t *testing.T) {
	srv, conn, sess := startFeed(t)
	conn.Close()

	select {
	case id := <-srv.DeadSessions():
		assert.Equal(t, sess.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not reported")
	}
	assert.True(t, sess.IsClosed())

	sess.Send([]byte("ignored"))
	sess.FlushOutput()
}

func TestSessionStore(t *testing.T) {
	srv, url := newFeed(t)
	_, a := dial(t, srv, url)
	_, b := dial(t, srv, url)
	require.NotEqual(t, a.ID, b.ID, "one server numbers its sessions uniquely")

	st := NewSessionStore()
	st.Add(a)
	st.Add(b)
	assert.Equal(t, 2, st.Count())
	assert.Same(t, a, st.Get(a.ID))

	b.Close()
	visited := 0
	st.ForEach(func(*Session) { visited++ })
	assert.Equal(t, 1, visited)

	st.Remove(b.ID)
	st.CloseAll()
	assert.Zero(t, st.Count())
	assert.True(t, a.IsClosed())
}

func TestFromNodeDepletedOmitsMissingHarvester(t *testing.T) {
	m := FromNodeDepleted(event.NodeDepleted{Node: ecs.NewEntityID(1, 2)})
	assert.Empty(t, m.Harvester)

	m = FromNodeDepleted(event.NodeDepleted{Node: ecs.NewEntityID(1, 2), Harvester: ecs.NewEntityID(9, 1)})
	assert.Equal(t, "9:1", m.Harvester)
}

func TestFromRespawnCompleted(t *testing.T) {
	m := FromRespawnCompleted(event.RespawnCompleted{
		Origin:    ecs.NewEntityID(4, 1),
		Rolled:    2,
		Attempted: 1,
		Spawned:   []ecs.EntityID{ecs.NewEntityID(5, 1)},
	})
	assert.Equal(t, "4:1", m.Origin)
	assert.Equal(t, []string{"5:1"}, m.Spawned)
}
