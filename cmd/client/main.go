package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gridtown/internal/api"
	"gridtown/internal/config"
	"gridtown/internal/engine"
	"gridtown/internal/geom"
	"gridtown/internal/inventory"
	"gridtown/internal/recorder"
	"gridtown/internal/state"
	"gridtown/internal/voice"
	"gridtown/internal/worldgen"
)

// Default city map used until the authority supplies one: a main street with
// residential and commercial blocks on either side.
const defaultCityMap = `RR-CC
RR|CC
--|--
CC|RR`

func main() {
	var (
		configPath = flag.String("config", "./configs/client.yaml", "client config file")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	catalog, err := inventory.Load(cfg.ConfigDir)
	if err != nil {
		logger.Fatalf("catalogs: %v", err)
	}

	client, err := api.New(cfg.BaseURL, cfg.Identity, log.New(os.Stdout, "[api] ", log.LstdFlags))
	if err != nil {
		logger.Fatalf("api client: %v", err)
	}

	opts := engine.Options{
		PollInterval:    cfg.PollInterval(),
		MoveInterval:    cfg.MoveInterval(),
		CarMoveInterval: cfg.CarMoveInterval(),
		HeartbeatEvery:  cfg.Heartbeat(),
		TerrainRefresh:  cfg.TerrainRefresh(),
		TerrainSeed:     cfg.TerrainSeed,
		ViewRadiusTiles: cfg.ViewRadiusTiles,
		Catalog:         catalog,
	}

	// Optional voice relay; the session runs fine without it.
	if cfg.VoiceURL != "" {
		vc, err := voice.Dial(cfg.VoiceURL, cfg.Identity, log.New(os.Stdout, "[voice] ", log.LstdFlags))
		if err != nil {
			logger.Printf("voice relay unavailable: %v", err)
		} else {
			defer vc.Close()
			go vc.Run(func(kind string, msg api.VoiceMessage) {
				logger.Printf("voice %s from %s", kind, msg.From)
			})
			opts.OnVoiceMessages = vc.Deliver
		}
	}

	// Optional session recording for offline replay.
	if cfg.RecordDir != "" {
		idx, err := recorder.OpenIndex(filepath.Join(cfg.RecordDir, "index.db"))
		if err != nil {
			logger.Fatalf("record index: %v", err)
		}
		defer idx.Close()
		rec := recorder.NewCycleRecorder(cfg.RecordDir, idx)
		defer rec.Close()
		opts.OnCycle = func(local state.Snapshot, pull *api.PullResponse, watermark string) {
			err := rec.WriteCycle(recorder.CycleEntry{
				At:        watermark,
				Watermark: watermark,
				Local:     local,
				Server:    *pull,
			})
			if err != nil {
				logger.Printf("record cycle: %v", err)
			}
		}
	}

	eng := engine.New(client, opts, log.New(os.Stdout, "[engine] ", log.LstdFlags))

	city := worldgen.GenerateCity(defaultCityMap, geom.Point{})
	lots, rooms, fixtures := worldgen.DefaultRegistry().Fill(city.Lots)
	city.Lots = lots
	eng.LoadWorld(rooms, city, fixtures)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng.Start(ctx)
	logger.Printf("session started identity=%s authority=%s", cfg.Identity, cfg.BaseURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Printf("shutting down")
	eng.Close(ctx)
}
