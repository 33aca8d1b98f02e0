package main

// #region imports
import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/anomaly"
	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/decision"
	"github.com/driftwatch/driftwatch/internal/governance"
	"github.com/driftwatch/driftwatch/internal/ledger"
	"github.com/driftwatch/driftwatch/internal/model"
	"github.com/driftwatch/driftwatch/internal/monitor"
	"github.com/driftwatch/driftwatch/internal/perf"
	"github.com/driftwatch/driftwatch/internal/server"
	"github.com/driftwatch/driftwatch/internal/store"
)

// #endregion

// #region main

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	logger, err := buildLogger()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Fatal("open store", zap.String("path", cfg.Store.Path), zap.Error(err))
	}
	defer st.Close()

	// Core components.
	obsLedger := ledger.New()
	slot := model.NewSlot()
	gate := governance.NewGate(logger, st)
	detector := anomaly.NewDetector(anomaly.Config{
		MinHistory:      cfg.Anomaly.MinHistory,
		Confidence:      cfg.Anomaly.Confidence,
		Season:          cfg.Anomaly.Season,
		SpikeHighPValue: cfg.Anomaly.SpikeHighPValue,
		MartingaleHigh:  cfg.Anomaly.MartingaleHigh,
	}, logger)
	engine := decision.NewEngine(decision.Config{
		MinLabeled:       cfg.Decision.MinLabeled,
		Cooldown:         cfg.Decision.Cooldown,
		MaxModelAge:      cfg.Decision.MaxModelAge,
		BaselineWindow:   cfg.Decision.BaselineWindow,
		DegradationRatio: cfg.Decision.DegradationRatio,
		LowConfTrigger:   cfg.Decision.LowConfTrigger,
		GrowthTrigger:    cfg.Decision.GrowthTrigger,
		Threshold:        cfg.Decision.Threshold,
		Weights:          decision.DefaultWeights(),
	}, logger)

	history := perf.NewHistory()
	rehydrate(st, history, engine, slot, logger)

	registry := prometheus.NewRegistry()
	metrics := monitor.NewMetrics(registry)

	loop := monitor.NewLoop(monitor.Config{
		Interval:          cfg.Monitor.Interval,
		MinLabeled:        cfg.Monitor.MinLabeled,
		MinRetrainLabeled: cfg.Monitor.MinRetrainLabeled,
		AccuracyWindow:    cfg.Monitor.AccuracyWindow,
		AnomalyRecency:    cfg.Monitor.AnomalyRecency,
		LowConfCutoff:     cfg.Monitor.LowConfCutoff,
	}, monitor.Deps{
		Ledger:   obsLedger,
		Slot:     slot,
		Learner:  model.ThresholdLearner{},
		Detector: detector,
		Engine:   engine,
		Gate:     gate,
		Store:    st,
		History:  history,
		Metrics:  metrics,
		Logger:   logger,
	})

	handlers := server.NewHandlers(server.Deps{
		Logger:        logger,
		Ledger:        obsLedger,
		Slot:          slot,
		Loop:          loop,
		Gate:          gate,
		Store:         st,
		History:       history,
		MinLabeled:    cfg.Monitor.MinLabeled,
		LowConfCutoff: cfg.Monitor.LowConfCutoff,
	})
	router := server.NewRouter(handlers, logger, registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go loop.Run(ctx)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
}

// #endregion main

// #region helpers

func buildLogger() (*zap.Logger, error) {
	if os.Getenv("DRIFTWATCH_DEV") == "true" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// rehydrate restores persisted histories and the cooldown state so a
// restart does not reset baselines, rate limiting, or version numbering.
func rehydrate(st *store.Store, history *perf.History, engine *decision.Engine, slot *model.Slot, logger *zap.Logger) {
	snaps, err := st.ListSnapshots(0)
	if err != nil {
		logger.Error("rehydrate snapshots failed", zap.Error(err))
	} else if len(snaps) > 0 {
		history.Seed(snaps)
		logger.Info("snapshot history restored", zap.Int("count", len(snaps)))
	}

	last, ok, err := st.LastRetraining()
	if err != nil {
		logger.Error("rehydrate retraining failed", zap.Error(err))
		return
	}
	if ok {
		engine.RecordRetraining(last.Timestamp)
		slot.Restore(last.NewVersion, last.Timestamp)
		logger.Info("retraining state restored",
			zap.Int("model_version", last.NewVersion),
			zap.Time("last_retraining", last.Timestamp))
	}
}

// #endregion helpers
