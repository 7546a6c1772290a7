package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/janpfeifer/GoOracle/internal/config"
	"github.com/janpfeifer/GoOracle/internal/game"
	"github.com/janpfeifer/GoOracle/internal/server"
	"github.com/janpfeifer/GoOracle/internal/store"
	"github.com/janpfeifer/GoOracle/internal/table"
	"k8s.io/klog/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		klog.Fatalf("Failed to load config: %v", err)
	}

	klog.InitFlags(nil)
	flagAddr := flag.String("addr", cfg.Addr, "Address to listen on, empty for an auto-port on localhost (env GOORACLE_ADDR)")
	flagDB := flag.String("db", cfg.DBPath, "SQLite database with the results history, empty to disable it (env GOORACLE_DB)")
	flagSpeed := flag.Int("speed", int(cfg.Speed), "Initial speed of auto games, 1 or 2 (env GOORACLE_SPEED)")
	flagStrict := flag.Bool("strict", cfg.Strict, "Panic on game invariant violations (env GOORACLE_STRICT)")
	flagWebDir := flag.String("web", cfg.WebDir, "Directory of the static files served under /web/ (env GOORACLE_WEB_DIR)")
	flag.Parse()
	defer klog.Flush()

	speed, err := game.ParseSpeed(*flagSpeed)
	if err != nil {
		klog.Fatalf("Invalid -speed: %v", err)
	}

	opts := server.Options{
		Tables: table.Options{Strict: *flagStrict, Speed: speed},
		WebDir: *flagWebDir,
	}
	if *flagDB != "" {
		st, err := store.Open(*flagDB)
		if err != nil {
			klog.Fatalf("Failed to open results store: %v", err)
		}
		defer st.Close()
		opts.Store = st
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := make(chan *server.ServerState, 1)
	go func() {
		state := <-started
		fmt.Printf("GoOracle server listening on http://%s\n", state.Address)
	}()

	if err := server.Run(ctx, *flagAddr, started, opts); err != nil {
		klog.Errorf("Server error: %v", err)
		klog.Flush()
		os.Exit(1)
	}
}
