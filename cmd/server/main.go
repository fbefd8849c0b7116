package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/chunkmail/internal/buildinfo"
	"github.com/dmitrijs2005/chunkmail/internal/logging"
	"github.com/dmitrijs2005/chunkmail/internal/server"
	"github.com/dmitrijs2005/chunkmail/internal/server/config"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(os.Stdout, level, cfg.LogFormat)

	ctx := context.Background()
	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
