package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/core/event"
	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/core/timer"
	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/game"
	"github.com/tilerealm/server/internal/handler"
	gonet "github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/persist"
	"github.com/tilerealm/server/internal/scripting"
	"github.com/tilerealm/server/internal/system"
)

const (
	saveWorkers     = 2
	saveQueue       = 256
	saveTimeout     = 5 * time.Second
	shutdownTimeout = 10 * time.Second
	aggroInterval   = time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              Tilerealm  v0.1.0            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mServer:\033[0m %s \033[90m(id: %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

type tables struct {
	mobs  *data.MobTable
	items *data.ItemTable
	npcs  *data.NpcTable
	trees *data.TreeTable
	m     *data.Map
}

func loadTables(wc config.WorldConfig) (*tables, error) {
	var (
		t   tables
		err error
	)
	if t.mobs, err = data.LoadMobTable(filepath.Join(wc.DataDir, "mobs.yaml")); err != nil {
		return nil, err
	}
	if t.items, err = data.LoadItemTable(filepath.Join(wc.DataDir, "items.yaml")); err != nil {
		return nil, err
	}
	if t.npcs, err = data.LoadNpcTable(filepath.Join(wc.DataDir, "npcs.yaml")); err != nil {
		return nil, err
	}
	if t.trees, err = data.LoadTreeTable(filepath.Join(wc.DataDir, "trees.yaml")); err != nil {
		return nil, err
	}
	if t.m, err = data.LoadMap(wc.MapPath); err != nil {
		return nil, err
	}
	return &t, nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (persist.Store, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn("using in-memory store, nothing survives a restart")
		return persist.NewMemory(), nil
	case "postgres":
		db, err := persist.NewDB(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return persist.NewPostgres(db), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Storage
	printSection("Database")
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, err := openStore(startCtx, cfg.Database, log)
	cancel()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	printOK(fmt.Sprintf("%s store ready", cfg.Database.Driver))

	// 4. Static data and scripts
	printSection("Data")
	t, err := loadTables(cfg.World)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	printStat("Mob kinds", t.mobs.Count())
	printStat("Item kinds", t.items.Count())
	printStat("NPC kinds", t.npcs.Count())
	printStat("Tree kinds", t.trees.Count())
	printStat("Map tiles", t.m.Width()*t.m.Height())

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	formulas, err := scripting.NewEngine(cfg.Scripting.Dir, combat.Default{Rand: rng}, rng, log.Named("lua"))
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer formulas.Close()

	// 5. Network and world
	netServer, err := gonet.NewServer(cfg.Network, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	hub := gonet.NewHub(log)
	wheel := timer.NewWheel(timer.System())
	bus := event.NewBus()

	w := game.NewWorld(game.Deps{
		Config:   cfg,
		Map:      t.m,
		Mobs:     t.mobs,
		Items:    t.items,
		Npcs:     t.npcs,
		Trees:    t.trees,
		Wheel:    wheel,
		Bus:      bus,
		Outbox:   hub,
		Kicker:   hub,
		Formulas: formulas,
		Rand:     rng,
		Log:      log,
	})
	w.LoadEntities()

	printSection("World")
	printStat("Entities", w.EntityCount())
	printStat("Mobs", w.MobCount())

	saver := persist.NewSaver(store, saveWorkers, saveQueue, saveTimeout, log)

	pktReg := packet.NewRegistry(log)
	handler.RegisterAll(pktReg, &handler.Deps{
		Config: cfg,
		World:  w,
		Store:  store,
		Out:    hub,
		Log:    log,
	})

	// 6. Systems
	persistSys := system.NewPersistenceSystem(w, saver, cfg.Database.SaveInterval, log)
	runner := coresys.NewRunner()
	runner.Register(system.NewInputSystem(netServer, hub, pktReg, w, saver, cfg.Network.MaxPacketsPerTick, log))
	runner.Register(system.NewTimerSystem(wheel))
	runner.Register(system.NewAggroSystem(w, aggroInterval))
	runner.Register(system.NewRegenSystem(w, cfg.World.RegenInterval))
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewRegionSystem(w))
	runner.Register(system.NewOutputSystem(hub))
	runner.Register(persistSys)

	rate := coresys.RateFromUPS(cfg.World.UpdatesPerSecond)
	sched := coresys.NewScheduler(runner, rate, cfg.World.MaintenanceInterval, system.Maintenance(w, log), log)

	mux := http.NewServeMux()
	mux.Handle(cfg.Network.Path, netServer)
	httpServer := &http.Server{
		Addr:              cfg.Network.BindAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 7. Run until signalled
	printSection("Ready")
	printReady(fmt.Sprintf("listening on ws://%s%s", cfg.Network.BindAddress, cfg.Network.Path))
	printReady(fmt.Sprintf("game loop started (tick: %s)", rate))
	fmt.Println()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		netServer.Shutdown()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})
	runErr := g.Wait()

	// The game loop has returned; the world is ours from here on.
	persistSys.SaveAll(saver)
	hub.CloseAll(shutdownTimeout)

	cctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := saver.Close(cctx); err != nil {
		log.Error("outstanding saves abandoned", zap.Error(err))
	}
	log.Info("server stopped",
		zap.Uint64("ticks", sched.Ticks()),
		zap.Uint64("failed_ticks", sched.Failures()),
	)
	return runErr
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
