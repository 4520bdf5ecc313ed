// Package main runs the real-time battle host: the beat loop, the WebSocket
// observer stream, the gRPC command service, and the journal.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/cory-johannsen/hexbeat/internal/config"
)

func main() {
	start := time.Now()
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx := context.Background()
	lifecycle, cleanup, err := initLifecycle(ctx, cfg)
	if err != nil {
		log.Fatalf("initializing beat server: %v", err)
	}
	log.Printf("beat server initialized [%s]", time.Since(start))

	err = lifecycle.Run(ctx)
	cleanup()
	if err != nil {
		log.Fatalf("beat server: %v", err)
	}
}
