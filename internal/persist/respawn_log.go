package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// RespawnLogEntry is one fired respawn cycle.
type RespawnLogEntry struct {
	Tick       uint64
	OriginNode uint64
	Prefab     string
	X, Y, Z    float64
	Rolled     int
	Attempted  int
	Spawned    []uint64
	CreatedAt  time.Time // set by the database on insert
}

type RespawnLogRepo struct {
	db *DB
}

func NewRespawnLogRepo(db *DB) *RespawnLogRepo {
	return &RespawnLogRepo{db: db}
}

// Write inserts a batch of entries in a single transaction.
func (r *RespawnLogRepo) Write(ctx context.Context, entries []RespawnLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("respawn log begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range entries {
		spawned := make([]int64, len(e.Spawned))
		for i, id := range e.Spawned {
			spawned[i] = int64(id)
		}
		batch.Queue(
			`INSERT INTO respawn_log (tick, origin_node, prefab, origin_x, origin_y, origin_z, rolled, attempted, spawned)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			int64(e.Tick), int64(e.OriginNode), e.Prefab, e.X, e.Y, e.Z, e.Rolled, e.Attempted, spawned,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("respawn log insert: %w", err)
	}

	return tx.Commit(ctx)
}

// Recent returns the newest entries, newest first.
func (r *RespawnLogRepo) Recent(ctx context.Context, limit int) ([]RespawnLogEntry, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT tick, origin_node, prefab, origin_x, origin_y, origin_z, rolled, attempted, spawned, created_at
		 FROM respawn_log ORDER BY id DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("respawn log query: %w", err)
	}
	defer rows.Close()

	var out []RespawnLogEntry
	for rows.Next() {
		var (
			e            RespawnLogEntry
			tick, origin int64
			spawned      []int64
		)
		if err := rows.Scan(&tick, &origin, &e.Prefab, &e.X, &e.Y, &e.Z,
			&e.Rolled, &e.Attempted, &spawned, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("respawn log scan: %w", err)
		}
		e.Tick, e.OriginNode = uint64(tick), uint64(origin)
		e.Spawned = make([]uint64, len(spawned))
		for i, id := range spawned {
			e.Spawned[i] = uint64(id)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByPrefab sums spawned nodes per replacement prefab.
func (r *RespawnLogRepo) CountByPrefab(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT prefab, COALESCE(SUM(cardinality(spawned)), 0) FROM respawn_log GROUP BY prefab`,
	)
	if err != nil {
		return nil, fmt.Errorf("respawn log count: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var prefab string
		var n int64
		if err := rows.Scan(&prefab, &n); err != nil {
			return nil, err
		}
		counts[prefab] = n
	}
	return counts, rows.Err()
}
