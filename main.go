package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/motionlab/facerelay/internal/config"
	"github.com/motionlab/facerelay/internal/engine"
	"github.com/motionlab/facerelay/internal/modelasset"
	"github.com/motionlab/facerelay/internal/server"
	"github.com/motionlab/facerelay/internal/timeutil"
)

var (
	devMode    = flag.Bool("dev", false, "Run with the in-process synthetic engine instead of a broker")
	listen     = flag.String("listen", "", "Listen address (overrides config)")
	configPath = flag.String("config", "", "Path to JSON config file")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	addr := cfg.GetListen()
	if *listen != "" {
		addr = *listen
	}

	if err := modelasset.Ensure(cfg.GetModelPath(), cfg.GetModelURL()); err != nil {
		log.Fatalf("failed to prepare landmark model: %v", err)
	}

	clock := timeutil.RealClock{}

	var eng engine.Engine
	if *devMode || cfg.GetMQTTBroker() == "" {
		log.Print("[Main] using synthetic detection engine")
		eng = engine.NewSynthetic(clock)
	} else {
		eng, err = engine.NewMQTTEngine(engine.MQTTConfig{
			Broker:        cfg.GetMQTTBroker(),
			RequestTopic:  cfg.GetRequestTopic(),
			ResponseTopic: cfg.GetResponseTopic(),
		})
		if err != nil {
			log.Fatalf("failed to connect detection engine: %v", err)
		}
	}
	defer eng.Close()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()

		httpServer := &http.Server{
			Addr:    addr,
			Handler: server.New(eng, clock, cfg.GetDetectTimeout()).Routes(),
		}

		go func() {
			log.Printf("[Main] listening on %s", addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
