package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for sandbox tuning hooks.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log.Named("lua")}

	// Core helpers first, then feature scripts
	for _, sub := range []string{"core", "ore"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Default node capacity when no script defines ore_node_capacity.
const defaultNodeCapacity = 1500

// NodeCapacity calls ore_node_capacity(kind, biome) for the amount of ore a
// fresh node holds.
func (e *Engine) NodeCapacity(kind, biome string) int {
	fn := e.vm.GetGlobal("ore_node_capacity")
	if fn == lua.LNil {
		return defaultNodeCapacity
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(kind), lua.LString(biome)); err != nil {
		e.log.Error("lua ore_node_capacity error", zap.Error(err))
		return defaultNodeCapacity
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)

	n := int(lua.LVAsNumber(result))
	if n <= 0 {
		return defaultNodeCapacity
	}
	return n
}

// HarvestContext holds pre-packed data for one harvesting swing.
type HarvestContext struct {
	Kind      string
	Biome     string
	Remaining int
	Capacity  int
	Tool      string
	Swing     int // swings this harvester made on the node so far
}

// HarvestResult is returned by the Lua harvest function.
type HarvestResult struct {
	Amount int
	Bonus  bool // final "bonus" swing that empties the node
}

// CalcHarvestYield calls the Lua calc_harvest_yield function. Without a
// script every swing removes a tenth of the capacity.
func (e *Engine) CalcHarvestYield(ctx HarvestContext) HarvestResult {
	fallback := HarvestResult{Amount: max(ctx.Capacity/10, 1)}
	fn := e.vm.GetGlobal("calc_harvest_yield")
	if fn == lua.LNil {
		return fallback
	}

	t := e.vm.NewTable()
	t.RawSetString("kind", lua.LString(ctx.Kind))
	t.RawSetString("biome", lua.LString(ctx.Biome))
	t.RawSetString("remaining", lua.LNumber(ctx.Remaining))
	t.RawSetString("capacity", lua.LNumber(ctx.Capacity))
	t.RawSetString("tool", lua.LString(ctx.Tool))
	t.RawSetString("swing", lua.LNumber(ctx.Swing))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua calc_harvest_yield error", zap.Error(err))
		return fallback
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua calc_harvest_yield returned non-table")
		return fallback
	}
	return HarvestResult{
		Amount: lInt(rt, "amount"),
		Bonus:  rt.RawGetString("bonus") == lua.LTrue,
	}
}

// --- Lua helpers ---

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
