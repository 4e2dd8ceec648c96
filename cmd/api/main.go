// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command api runs the combined Verification Gateway + Proof Worker
// process. The two are one binary rather than two because the work
// queue (pkg/queue) is an in-process channel and the session store
// (pkg/session) guards its state machine with an in-process mutex —
// neither crosses an OS process boundary, so a gateway and a worker
// in separate processes could never see the same queue. See
// DESIGN.md's single-process deployment note.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nyakiomaina/mpesa-credit-proof/internal/blocking"
	"github.com/nyakiomaina/mpesa-credit-proof/internal/config"
	"github.com/nyakiomaina/mpesa-credit-proof/internal/logging"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/gateway"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/metrics"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/queue"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/session"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/storage"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/txstore"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/worker"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/zkvm"
)

func main() {
	cfg := config.FromEnv()
	cfg.BindFlags()
	flag.Parse()

	lg, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	db, err := storage.NewStorage(cfg.StorageType, cfg.StoragePath)
	if err != nil {
		lg.Fatal("failed to open storage", zap.Error(err))
	}

	sessions := session.NewStore(db, lg, nil)
	txns := txstore.NewStore(db)
	q := queue.New(cfg.QueueCapacity)

	m := metrics.NewMetrics()
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)

	if cfg.ProverRootSecret == "" && !cfg.AllowDevProver {
		lg.Fatal("no PROVER_ROOT_SECRET configured and development prover is disabled")
	}

	var prover *zkvm.Prover
	if cfg.ProverRootSecret != "" {
		prover, err = zkvm.NewProver([]byte(cfg.ProverRootSecret))
	} else {
		prover, err = zkvm.NewDevProver()
	}
	if err != nil {
		lg.Fatal("failed to initialize prover", zap.Error(err))
	}
	verifier := zkvm.NewVerifier(zkvm.ProgramID, prover.PublicKey())
	if cfg.AllowDevProver {
		verifier = verifier.AllowDev()
	}

	var devProver *zkvm.Prover
	if cfg.AllowDevProver {
		devProver, err = zkvm.NewDevProver()
		if err != nil {
			lg.Fatal("failed to initialize development prover", zap.Error(err))
		}
	}

	pool := blocking.NewPool(cfg.ProverPoolSize)

	w := worker.New(q, sessions, txns, prover, verifier, pool, lg.With(zap.String("component", "worker"))).WithMetrics(m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	gw := gateway.New(sessions, q, verifier, devProver, pool, m, lg.With(zap.String("component", "gateway")), cfg.AllowDevProver)
	router := gw.Router(cfg.Environment)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:    cfg.BindAddress,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("failed to start server", zap.Error(err))
		}
	}()

	lg.Info("verification gateway started", zap.String("addr", cfg.BindAddress), zap.String("environment", cfg.Environment))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Fatal("gateway forced to shutdown", zap.Error(err))
	}

	lg.Info("exited cleanly")
}
