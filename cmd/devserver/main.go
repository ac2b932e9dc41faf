package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alivecode/aliot-go/internal/devserver"
)

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func main() {
	var (
		addr      = flag.String("addr", getEnv("ALIOT_DEV_ADDR", ":8888"), "Listen address (env: ALIOT_DEV_ADDR)")
		path      = flag.String("path", getEnv("ALIOT_DEV_PATH", "/iotgateway/"), "Websocket path (env: ALIOT_DEV_PATH)")
		objects   = flag.String("objects", getEnv("ALIOT_DEV_OBJECTS", ""), "Comma-separated object ids to accept, empty accepts all (env: ALIOT_DEV_OBJECTS)")
		tcpAddr   = flag.String("tcp", getEnv("ALIOT_DEV_TCP", ""), "Optional listen address for line-framed TCP objects (env: ALIOT_DEV_TCP)")
		ping      = flag.Duration("ping", 30*time.Second, "Ping interval, 0 to disable")
		advertise = flag.Bool("mdns", false, "Advertise the server over mDNS")
		debug     = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	var allowed []string
	for _, id := range strings.Split(*objects, ",") {
		if id = strings.TrimSpace(id); id != "" {
			allowed = append(allowed, id)
		}
	}

	srv := devserver.NewServer(devserver.Options{
		Addr:           *addr,
		Path:           *path,
		PingInterval:   *ping,
		AllowedObjects: allowed,
		Advertise:      *advertise,
		TCPAddr:        *tcpAddr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		slog.Error("Development server failed", "error", err.Error())
		os.Exit(1)
	}
}
