package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Azure/go-autorest/autorest/to"
	_ "github.com/joho/godotenv/autoload"
	"github.com/moodesky/plumage/appview"
	"github.com/moodesky/plumage/avatar"
	"github.com/moodesky/plumage/logging"
	"github.com/moodesky/plumage/server"
	"github.com/urfave/cli/v2"
)

var Version = "dev"

func main() {
	app := &cli.App{
		Name:  "plumage",
		Usage: "Avatar/profile metadata cache for atproto clients",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   "127.0.0.1:8080",
				EnvVars: []string{"PLUMAGE_ADDR"},
			},
			&cli.StringFlag{
				Name:    "appview-host",
				Value:   appview.DefaultHost,
				EnvVars: []string{"PLUMAGE_APPVIEW_HOST"},
			},
			&cli.DurationFlag{
				Name:    "ttl",
				Value:   5 * time.Minute,
				EnvVars: []string{"PLUMAGE_TTL"},
			},
			&cli.IntFlag{
				Name:    "max-cache-size",
				Value:   500,
				EnvVars: []string{"PLUMAGE_MAX_CACHE_SIZE"},
			},
			&cli.IntFlag{
				Name:    "max-retries",
				Value:   3,
				EnvVars: []string{"PLUMAGE_MAX_RETRIES"},
			},
			&cli.DurationFlag{
				Name:    "backoff-initial",
				Value:   500 * time.Millisecond,
				EnvVars: []string{"PLUMAGE_BACKOFF_INITIAL"},
			},
			&cli.DurationFlag{
				Name:    "backoff-max",
				Value:   30 * time.Second,
				EnvVars: []string{"PLUMAGE_BACKOFF_MAX"},
			},
			&cli.IntFlag{
				Name:    "max-concurrent",
				Value:   8,
				EnvVars: []string{"PLUMAGE_MAX_CONCURRENT"},
			},
			&cli.IntFlag{
				Name:    "log-buffer-size",
				Value:   50,
				EnvVars: []string{"PLUMAGE_LOG_BUFFER_SIZE"},
			},
			&cli.DurationFlag{
				Name:    "flush-interval",
				Value:   5 * time.Second,
				EnvVars: []string{"PLUMAGE_FLUSH_INTERVAL"},
			},
			&cli.Float64Flag{
				Name:    "sampling-rate",
				Value:   1.0,
				EnvVars: []string{"PLUMAGE_SAMPLING_RATE"},
			},
			&cli.StringFlag{
				Name:    "min-log-level",
				Value:   "debug",
				EnvVars: []string{"PLUMAGE_MIN_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "disable-sensitive-filter",
				EnvVars: []string{"PLUMAGE_DISABLE_SENSITIVE_FILTER"},
			},
			&cli.StringFlag{
				Name:    "environment",
				Value:   "development",
				EnvVars: []string{"PLUMAGE_ENVIRONMENT"},
			},
			&cli.IntFlag{
				Name:    "log-ring-size",
				Value:   200,
				EnvVars: []string{"PLUMAGE_LOG_RING_SIZE"},
			},
			&cli.StringFlag{
				Name:    "log-db",
				Usage:   "path to a sqlite db for persisted logs; empty disables persistence",
				EnvVars: []string{"PLUMAGE_LOG_DB"},
			},
		},
		Commands: []*cli.Command{
			run,
		},
		ErrWriter: os.Stdout,
		Version:   Version,
	}

	app.Run(os.Args)
}

var run = &cli.Command{
	Name:  "run",
	Usage: "Start the plumage cache with its diagnostics server",
	Action: func(cmd *cli.Context) error {
		level, err := parseLevel(cmd.String("min-log-level"))
		if err != nil {
			return err
		}

		lcfg := logging.Config{
			MinLevel:      level,
			BufferSize:    cmd.Int("log-buffer-size"),
			FlushInterval: cmd.Duration("flush-interval"),
			SamplingRate:  cmd.Float64("sampling-rate"),
			Environment:   cmd.String("environment"),
			Version:       Version,
		}
		if cmd.Bool("disable-sensitive-filter") {
			lcfg.FilterSensitive = to.BoolPtr(false)
		}

		logger := logging.New(lcfg)
		defer logger.Close()

		logger.AddSink(logging.NewConsoleSink(os.Stdout))

		ring := logging.NewRingSink(cmd.Int("log-ring-size"))
		logger.AddSink(ring)

		if path := cmd.String("log-db"); path != "" {
			dbsink, err := logging.NewDBSink(path, cmd.Int("log-ring-size")*5)
			if err != nil {
				fmt.Printf("error opening log db: %v", err)
				return err
			}
			logger.AddSink(dbsink)
		}

		client, err := appview.NewClient(&appview.ClientArgs{
			Host:   cmd.String("appview-host"),
			Logger: logger,
		})
		if err != nil {
			fmt.Printf("error creating appview client: %v", err)
			return err
		}

		avatars, err := avatar.NewService(&avatar.Args{
			Fetcher: client,
			Logger:  logger,
			Config: avatar.Config{
				TTL:            cmd.Duration("ttl"),
				MaxCacheSize:   cmd.Int("max-cache-size"),
				MaxRetries:     cmd.Int("max-retries"),
				BackoffInitial: cmd.Duration("backoff-initial"),
				BackoffMax:     cmd.Duration("backoff-max"),
				MaxConcurrent:  cmd.Int("max-concurrent"),
			},
		})
		if err != nil {
			fmt.Printf("error creating avatar service: %v", err)
			return err
		}

		s, err := server.New(&server.Args{
			Addr:    cmd.String("addr"),
			Avatars: avatars,
			Logger:  logger.Slog("http"),
			Ring:    ring,
			Version: Version,
		})
		if err != nil {
			fmt.Printf("error creating plumage server: %v", err)
			return err
		}

		if err := s.Serve(cmd.Context); err != nil {
			fmt.Printf("error starting plumage: %v", err)
			return err
		}

		return nil
	},
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "critical":
		return logging.LevelCritical, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", s)
	}
}
