package main

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alivecode/aliot-go/client"
	"github.com/alivecode/aliot-go/config"
)

type CLIConfig struct {
	ConfigPath   string
	Object       string
	LogLevel     string
	LogFormat    string
	StatusAddr   string
	MCP          bool
	RestartDelay time.Duration
	Interval     time.Duration
	Repetitions  int
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config", config.Path(),
		"Path to the configuration file (env: ALIOT_CONFIG)")
	flag.StringVar(&cfg.Object, "object", getEnv("ALIOT_OBJECT", "thermostat"),
		"Object name in the configuration file (env: ALIOT_OBJECT)")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("ALIOT_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: ALIOT_LOG_LEVEL)")
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("ALIOT_LOG_FORMAT", "text"),
		"Log format: json, text (env: ALIOT_LOG_FORMAT)")
	flag.StringVar(&cfg.StatusAddr, "status-addr", getEnv("ALIOT_STATUS_ADDR", ""),
		"Status server address, empty to disable (env: ALIOT_STATUS_ADDR)")
	flag.BoolVar(&cfg.MCP, "mcp", false,
		"Serve the object's operations as MCP tools over stdio")
	flag.DurationVar(&cfg.RestartDelay, "restart-delay", getEnvDuration("ALIOT_RESTART_DELAY", 5*time.Second),
		"Delay before reconnecting after the connection ends, 0 to exit instead (env: ALIOT_RESTART_DELAY)")
	flag.DurationVar(&cfg.Interval, "interval", time.Second,
		"Pause between two runs of the main loop")
	flag.IntVar(&cfg.Repetitions, "repetitions", -1,
		"Number of main loop runs per connection, -1 for unbounded")

	flag.Parse()
	return cfg
}

func (c *CLIConfig) logConfig() client.LogConfig {
	lc := client.DefaultLogConfig()
	lc.Format = strings.ToLower(c.LogFormat)
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		lc.Level = slog.LevelDebug
	case "warn":
		lc.Level = slog.LevelWarn
	case "error":
		lc.Level = slog.LevelError
	default:
		lc.Level = slog.LevelInfo
	}
	// stdout carries the MCP protocol
	if c.MCP {
		lc.Output = os.Stderr
	}
	return lc
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}
