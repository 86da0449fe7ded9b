package net

import (
	"encoding/json"
	"fmt"

	"github.com/l1jgo/remineration/internal/core/event"
)

// Message types on the observer feed.
const (
	MsgHello            = "hello"
	MsgNodeSpawned      = "node_spawned"
	MsgNodeDepleted     = "node_depleted"
	MsgRespawnCompleted = "respawn_completed"
)

// Envelope wraps every feed message.
type Envelope struct {
	Type string          `json:"type"`
	Tick uint64          `json:"tick"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Hello struct {
	Server string `json:"server"`
	Nodes  int    `json:"nodes"`
}

type NodeSpawnedMsg struct {
	Node     string     `json:"node"`
	Prefab   string     `json:"prefab"`
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"` // w, x, y, z
}

type NodeDepletedMsg struct {
	Node      string     `json:"node"`
	Prefab    string     `json:"prefab"`
	Position  [3]float64 `json:"position"`
	Harvester string     `json:"harvester,omitempty"`
}

type RespawnCompletedMsg struct {
	Origin    string     `json:"origin"`
	Prefab    string     `json:"prefab"`
	Position  [3]float64 `json:"position"`
	Rolled    int        `json:"rolled"`
	Attempted int        `json:"attempted"`
	Spawned   []string   `json:"spawned"`
}

// Encode marshals data into an envelope of the given type.
func Encode(typ string, tick uint64, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}
	return json.Marshal(Envelope{Type: typ, Tick: tick, Data: raw})
}

// Decode splits a feed message into its envelope; Data is left raw.
func Decode(msg []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

func FromNodeSpawned(ev event.NodeSpawned) NodeSpawnedMsg {
	return NodeSpawnedMsg{
		Node:     ev.Node.String(),
		Prefab:   ev.Prefab,
		Position: ev.Position,
		Rotation: [4]float64{ev.Rotation.W, ev.Rotation.V[0], ev.Rotation.V[1], ev.Rotation.V[2]},
	}
}

func FromNodeDepleted(ev event.NodeDepleted) NodeDepletedMsg {
	m := NodeDepletedMsg{
		Node:     ev.Node.String(),
		Prefab:   ev.Prefab,
		Position: ev.Position,
	}
	if !ev.Harvester.IsZero() {
		m.Harvester = ev.Harvester.String()
	}
	return m
}

func FromRespawnCompleted(ev event.RespawnCompleted) RespawnCompletedMsg {
	spawned := make([]string, len(ev.Spawned))
	for i, id := range ev.Spawned {
		spawned[i] = id.String()
	}
	return RespawnCompletedMsg{
		Origin:    ev.Origin.String(),
		Prefab:    ev.Prefab,
		Position:  ev.Position,
		Rolled:    ev.Rolled,
		Attempted: ev.Attempted,
		Spawned:   spawned,
	}
}
