// Command salesline-server starts the sales time-series TCP server.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/salesline/salesline/internal/cache"
	"github.com/salesline/salesline/internal/config"
	"github.com/salesline/salesline/internal/limiter"
	"github.com/salesline/salesline/internal/service"
	"github.com/salesline/salesline/internal/server/tcp"
	"github.com/salesline/salesline/internal/storage"
	"github.com/salesline/salesline/internal/timeseries"
	"github.com/salesline/salesline/internal/worker"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, recovers persisted state and serves until a
// signal or the console quit command.
func main() {
	configPath := flag.String("config", "salesline.yaml", "config file (YAML)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("maxDays", cfg.TimeSeries.MaxDays),
		zap.Int("memoryDays", cfg.TimeSeries.MemoryDays),
	)

	store, err := storage.Open(cfg.Data.Dir)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}

	// Recover persisted state. Corruption aborts startup loudly.
	auth := service.NewAuthService(limiter.NewMemory(limiterWindow, limiterMaxFails, limiterBlockFor))
	users, err := store.LoadUsers()
	if err != nil {
		logger.Fatal("load users", zap.Error(err))
	}
	for _, u := range users {
		if err := auth.RegisterPrehashed(u); err != nil {
			logger.Fatal("register recovered user", zap.String("user", u.Username), zap.Error(err))
		}
	}

	currentDayID, err := store.LoadState()
	if err != nil {
		logger.Fatal("load state", zap.Error(err))
	}
	history, err := store.LoadRecentDays(currentDayID, cfg.TimeSeries.MemoryDays)
	if err != nil {
		logger.Fatal("load recent days", zap.Error(err))
	}

	ts, err := timeseries.New(cfg.TimeSeries.MaxDays, cfg.TimeSeries.MemoryDays, store, logger)
	if err != nil {
		logger.Fatal("time series", zap.Error(err))
	}
	ts.Restore(currentDayID, history)

	productCache, err := cache.New(cfg.TimeSeries.MemoryDays)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	agg := service.NewAggregationService(ts, productCache)

	pool := worker.NewPool(cfg.Server.Workers, logger)
	srv := tcp.New(auth, agg, ts, pool, logger)

	logger.Info("recovered state",
		zap.Int("users", auth.UserCount()),
		zap.Int32("currentDay", ts.CurrentDayID()),
		zap.Int("historicalDays", ts.HistoricalDayCount()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lis, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	// Admin console. Detached on purpose: a blocked stdin read must not
	// hold up shutdown.
	go console(cancel, auth, ts, store, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", lis.Addr().String()))
		return srv.Serve(gctx, lis)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}

	pool.Stop()
	if err := saveAll(auth, ts, store); err != nil {
		logger.Error("save on shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// Login limiter tuning.
const (
	limiterWindow   = 15 * time.Minute
	limiterMaxFails = 5
	limiterBlockFor = 15 * time.Minute
)

// saveAll persists users and the rotation state. Completed days are already
// on disk from their rotation.
func saveAll(auth *service.AuthService, ts *timeseries.Store, store *storage.Store) error {
	if err := store.SaveUsers(auth.Users()); err != nil {
		return err
	}
	return store.SaveState(ts.CurrentDayID())
}

// console handles the admin commands: newday | stats | save | help | quit.
func console(quit context.CancelFunc, auth *service.AuthService, ts *timeseries.Store, store *storage.Store, logger *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "newday":
			ts.NewDay()
			fmt.Printf("day rotated, current day is now %d\n", ts.CurrentDayID())
		case "stats":
			fmt.Printf("users: %d\n", auth.UserCount())
			fmt.Printf("current day: %d (%d events)\n", ts.CurrentDayID(), ts.CurrentDayEventCount())
			fmt.Printf("historical days: %d (max %d on disk, %d in memory)\n",
				ts.HistoricalDayCount(), ts.MaxDays(), ts.MemoryDays())
		case "save":
			if err := saveAll(auth, ts, store); err != nil {
				fmt.Printf("save failed: %v\n", err)
				continue
			}
			fmt.Println("saved")
		case "help":
			fmt.Println("commands: newday | stats | save | help | quit")
		case "quit":
			quit()
			return
		case "":
		default:
			fmt.Println("unknown command (try 'help')")
		}
	}
	logger.Info("console closed")
}
