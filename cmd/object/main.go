// Command object runs a simulated thermostat against a coordination server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cast"

	"github.com/alivecode/aliot-go/client"
	"github.com/alivecode/aliot-go/config"
	"github.com/alivecode/aliot-go/mcp"
	"github.com/alivecode/aliot-go/status"
)

const (
	actionSetTarget = 0
	actionHeater    = 1
)

type reading struct {
	Temperature float64 `json:"temperature"`
	Target      float64 `json:"target"`
	Heating     bool    `json:"heating"`
}

type thermostat struct {
	mu sync.Mutex
	reading
}

func (t *thermostat) step() reading {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Heating {
		t.Temperature += 0.3
	} else {
		t.Temperature -= 0.1
	}
	t.Temperature += (rand.Float64() - 0.5) * 0.05
	t.Heating = t.Temperature < t.Target
	return t.reading
}

func (t *thermostat) setTarget(v float64) {
	t.mu.Lock()
	t.Target = v
	t.mu.Unlock()
}

func (t *thermostat) setHeating(on bool) {
	t.mu.Lock()
	t.Heating = on
	t.mu.Unlock()
}

func main() {
	cli := parseFlags()
	if err := run(cli); err != nil {
		slog.Error("Object stopped", "error", err.Error())
		os.Exit(1)
	}
}

func run(cli *CLIConfig) error {
	logger := cli.logConfig().NewLogger()
	slog.SetDefault(logger)

	file, err := config.Load(cli.ConfigPath)
	if err != nil {
		return err
	}
	objCfg := file.Object(cli.Object)
	if err := objCfg.Validate(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	obj := client.NewClient(cli.Object, objCfg, client.WithLogger(logger), client.WithMetrics(reg))
	state := &thermostat{reading: reading{Temperature: 18, Target: 21}}
	if err := setup(obj, state, cli); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cli.StatusAddr != "" {
		srv := status.NewServer(cli.StatusAddr, obj, reg)
		go func() {
			if err := srv.Start(); err != nil {
				slog.Error("Status server failed", "error", err.Error())
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if cli.MCP {
		mcpServer := mcp.NewMCPServer(cli.Object, "1.0.0")
		mcp.NewTools(obj).Register(mcpServer)
		go func() {
			if err := mcpServer.Run(); err != nil {
				slog.Error("MCP server failed", "error", err.Error())
			}
			stop()
		}()
	}

	return runWithRestart(ctx, obj, cli.RestartDelay)
}

func setup(obj *client.Client, state *thermostat, cli *CLIConfig) error {
	if err := obj.OnAction(actionSetTarget, func(v any) any {
		target, err := cast.ToFloat64E(v)
		if err != nil {
			return fmt.Sprintf("invalid target %v", v)
		}
		state.setTarget(target)
		return target
	}); err != nil {
		return err
	}

	if err := obj.OnAction(actionHeater, func(v any) any {
		on := cast.ToBool(v)
		state.setHeating(on)
		return on
	}, client.WithoutReceptionLog()); err != nil {
		return err
	}

	if err := obj.Listen([]string{"/document/target"}, func(fields map[string]any) {
		if target, err := cast.ToFloat64E(fields["/document/target"]); err == nil {
			state.setTarget(target)
		}
	}); err != nil {
		return err
	}

	if err := obj.OnBroadcast(func(data any) {
		slog.Info("Broadcast received", "data", data)
	}); err != nil {
		return err
	}

	return obj.MainLoop(func() {
		snapshot := state.step()
		if err := obj.UpdateState(&snapshot); err != nil {
			slog.Warn("Failed to publish state", "error", err)
		}
		time.Sleep(cli.Interval)
	}, client.WithRepetitions(cli.Repetitions))
}

// runWithRestart reconnects after every connection loss until ctx ends. A
// zero delay disables restarts.
func runWithRestart(ctx context.Context, obj *client.Client, delay time.Duration) error {
	for {
		err := obj.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, client.ErrNoMainLoop) || errors.Is(err, client.ErrMissingConfig) {
			return err
		}
		if delay <= 0 {
			return err
		}
		slog.Info("Connection ended, restarting", "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
}
