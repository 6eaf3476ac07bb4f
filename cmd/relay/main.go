package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	"conduit/internal/relay"
)

func main() {
	addr := flag.String("addr", ":4000", "listen address")
	motd := flag.String("motd", "", "message of the day shown to connecting clients")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	srv := relay.NewServer(relay.ServerConfig{MOTD: *motd, Logger: log})
	log.Info("relay listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, srv); err != nil {
		log.Error("relay exited", "err", err)
		os.Exit(1)
	}
}
