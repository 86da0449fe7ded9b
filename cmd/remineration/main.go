package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/remineration/internal/config"
	"github.com/l1jgo/remineration/internal/core/event"
	coresys "github.com/l1jgo/remineration/internal/core/system"
	"github.com/l1jgo/remineration/internal/core/timer"
	"github.com/l1jgo/remineration/internal/data"
	gonet "github.com/l1jgo/remineration/internal/net"
	"github.com/l1jgo/remineration/internal/ore"
	"github.com/l1jgo/remineration/internal/persist"
	"github.com/l1jgo/remineration/internal/scripting"
	"github.com/l1jgo/remineration/internal/system"
	"github.com/l1jgo/remineration/internal/world"
)

func main() {
	var err error
	if len(os.Args) > 1 && os.Args[1] == "history" {
		err = history(os.Args[2:])
	} else {
		err = run()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            remineration  v0.1.0           \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        ore node respawn · sandbox         \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

func configPath() string {
	if p := os.Getenv("REMINERATION_CONFIG"); p != "" {
		return p
	}
	return "config/remineration.toml"
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg, mig, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if mig != nil {
		log.Warn("config migrated",
			zap.String("from", mig.From),
			zap.String("to", mig.To),
			zap.Bool("respawn_reset", mig.Reset))
	}

	printBanner(cfg.Server.Name)

	// 3. Optional PostgreSQL audit log
	var respawnLog *persist.RespawnLogRepo
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		version, err := db.Migrate(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("schema version %d", version))
		fmt.Println()
		respawnLog = persist.NewRespawnLogRepo(db)
	}

	// 4. Load world data
	printSection("data")

	terrain, err := data.LoadTerrain(cfg.Sim.TerrainFile, cfg.Sim.TileDir)
	if err != nil {
		return fmt.Errorf("load terrain: %w", err)
	}
	info := terrain.Info()
	printStat(fmt.Sprintf("terrain %s cells", info.Name), info.Width*info.Depth)

	objects, err := data.LoadWorldObjects(cfg.Sim.ObjectsFile)
	if err != nil {
		return fmt.Errorf("load world objects: %w", err)
	}

	luaEngine, err := scripting.NewEngine(cfg.Sim.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	printOK("lua scripts loaded")

	// 5. World, respawn scheduler and systems
	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	bus := event.NewBus()
	clock := timer.New()
	worldState := world.NewState(terrain, bus, luaEngine, log)

	nodes, structures := worldState.Populate(objects, rng)
	printStat("ore nodes", nodes)
	printStat("structures", structures)

	finder := ore.NewFinder(worldState, rng, ore.FinderOptions{
		ProbeRange:          cfg.Respawn.GroundProbeRange,
		CheckRadius:         cfg.Respawn.CheckRadius,
		TopologyAtCandidate: cfg.Respawn.TopologyAtCandidate,
	})
	sched := ore.NewScheduler(cfg.Respawn, clock, finder, worldState, rng, bus, log)
	event.Subscribe(bus, sched.Handle)

	runner := coresys.NewRunner()
	harvest := system.NewHarvestSystem(worldState, rng, "pickaxe", cfg.Sim.HarvestInterval, log)
	printStat("harvesters", harvest.AddHarvesters(cfg.Sim.Harvesters))
	fmt.Println()

	runner.Register(harvest)
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewTimerSystem(clock))
	runner.Register(system.NewCleanupSystem(worldState))

	var audit *system.AuditSystem
	if respawnLog != nil {
		audit = system.NewAuditSystem(bus, respawnLog, cfg.Database.FlushInterval, log)
		runner.Register(audit)
	}

	var feedServer *gonet.Server
	var feed *system.FeedSystem
	if cfg.Net.Enabled {
		feedServer = gonet.NewServer(cfg.Net, log)
		if err := feedServer.Listen(cfg.Net.BindAddress); err != nil {
			return fmt.Errorf("feed server: %w", err)
		}
		feed = system.NewFeedSystem(feedServer, gonet.NewSessionStore(), bus, worldState, runner, cfg.Server.Name, log)
		runner.Register(feed)
	}

	// 6. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Server.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printStat("systems", runner.Len())
	if feedServer != nil {
		printReady(fmt.Sprintf("observer feed ws://%s%s", feedServer.Addr(), gonet.FeedPath))
	}
	printReady(fmt.Sprintf("game loop started (tick: %s)", cfg.Server.TickRate))
	fmt.Println()

	statsCounter := 0
	const statsInterval = 300 // 300 ticks × 200ms = 1 minute

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Server.TickRate)

			statsCounter++
			if statsCounter >= statsInterval {
				statsCounter = 0
				log.Info("world stats",
					zap.Int("nodes", worldState.NodeCount()),
					zap.Int("entities", worldState.EntityCount()),
					zap.Int("pending_respawns", sched.Pending()),
					zap.Int("timers", clock.Len()))
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			if n := sched.Teardown(); n > 0 {
				log.Info("respawns discarded", zap.Int("count", n))
			}
			// Deliver the last tick's events and push them to observers
			// without advancing the world.
			runner.TickPhase(coresys.PhaseEvents, 0)
			runner.TickPhase(coresys.PhaseOutput, 0)
			if audit != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := audit.Flush(ctx); err != nil {
					log.Error("final respawn log flush failed", zap.Error(err))
				}
				cancel()
			}
			if feed != nil {
				feed.Shutdown()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = feedServer.Shutdown(ctx)
				cancel()
			}
			log.Info("server stopped")
			return nil
		}
	}
}

// history prints the newest respawn log entries and per-prefab totals.
func history(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "number of entries to show")
	_ = fs.Parse(args)

	cfg, _, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	repo := persist.NewRespawnLogRepo(db)
	entries, err := repo.Recent(ctx, *limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  tick=%-8d node=%-12d %-70s rolled=%d attempted=%d spawned=%d\n",
			e.CreatedAt.Format(time.DateTime), e.Tick, e.OriginNode, e.Prefab,
			e.Rolled, e.Attempted, len(e.Spawned))
	}

	totals, err := repo.CountByPrefab(ctx)
	if err != nil {
		return err
	}
	fmt.Println()
	for prefab, n := range totals {
		printStat(prefab, int(n))
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
