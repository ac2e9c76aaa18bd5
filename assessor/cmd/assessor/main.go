package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/alerts"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/api"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/catalog"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/config"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/cooldown"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/inference"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/logger"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/metrics"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/orchestrator"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/queue"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/risk"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/store"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/store/sqlstore"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/ws"
)

func main() {
	app := &cli.App{
		Name:  "assessor",
		Usage: "spoilage risk assessment pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file; built-in defaults when empty",
				EnvVars: []string{"ASSESSOR_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before the config is read",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the scheduler and the HTTP API until interrupted",
				Action: serve,
			},
			{
				Name:   "run-once",
				Usage:  "perform one scheduled assessment run and print its report",
				Action: runOnce,
			},
			{
				Name:      "assess",
				Usage:     "assess one batch immediately and print the outcome",
				ArgsUsage: "<batch-id>",
				Action:    assess,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "assessor:", err)
		os.Exit(1)
	}
}

// assessor is the wired process.
type assessor struct {
	cfg     *config.Config
	log     *logger.Logger
	stores  store.Set
	queue   *queue.Queue
	metrics *metrics.Registry
	alerts  *alerts.Service
	hub     *ws.Hub
	sched   *orchestrator.Scheduler
}

func build(c *cli.Context) (*assessor, error) {
	if err := godotenv.Load(c.String("env-file")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", c.String("env-file"), err)
	}

	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	stores, err := openStore(cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	gate := cooldown.New()
	reg := metrics.New()
	q := queue.New(cfg.Queue.Interval, log)
	reg.SetQueueSource(func() metrics.QueueStats {
		st := q.Stats()
		return metrics.QueueStats{Pending: st.Pending, InFlight: st.InFlight, Completed: st.Completed}
	})

	if cfg.Inference.APIKey() == "" {
		log.Warn("inference API key is empty", "env", cfg.Inference.APIKeyEnv)
	}
	hub := ws.New(stores.Alerts.List, cfg.HTTP.StreamInterval, log)
	notifiers := alerts.Notifiers{alerts.NewWebhooks(cfg.Alerts.Webhooks, log), hub}
	svc := alerts.NewService(stores.Alerts, notifiers, log)

	sched := orchestrator.New(orchestrator.Deps{
		Store:     stores,
		Catalog:   catalog.FromConfig(cfg.SafeRanges),
		Gate:      gate,
		Queue:     q,
		Inference: inference.NewHTTPClient(cfg.Inference, log),
		Risk:      risk.NewEngine(stores.Batches, gate, cfg.Cooldown.Window, log),
		Alerts:    svc,
		Metrics:   reg,
		Logger:    log,
	}, orchestrator.PolicyFromConfig(cfg))

	log.Info("assessor configured",
		"storage", cfg.Storage.Backend,
		"cron", cfg.Schedule.Cron,
		"cooldown", cfg.Cooldown.Window.String(),
		"queue_interval", cfg.Queue.Interval.String(),
		"model", cfg.Inference.Model,
		"webhooks", len(cfg.Alerts.Webhooks),
	)
	return &assessor{cfg: cfg, log: log, stores: stores, queue: q, metrics: reg, alerts: svc, hub: hub, sched: sched}, nil
}

func openStore(cfg config.StorageConfig, log *logger.Logger) (store.Set, error) {
	if cfg.Backend == "memory" {
		log.Warn("using in-memory store; state is lost on exit")
		return store.NewMemory().Set(), nil
	}
	st, err := sqlstore.Open(cfg, log)
	if err != nil {
		return store.Set{}, err
	}
	return st.Set(), nil
}

func (a *assessor) close() {
	if a.stores.Close != nil {
		if err := a.stores.Close(); err != nil {
			a.log.Warn("close store", "error", err)
		}
	}
	a.log.Sync()
}

func serve(c *cli.Context) error {
	a, err := build(c)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.sched.Start(ctx, a.cfg.Schedule.Cron); err != nil {
		return err
	}

	if path := c.String("config"); path != "" {
		go func() {
			err := config.Watch(ctx, path, a.log, func(updated *config.Config) {
				if err := a.sched.ApplyConfig(updated); err != nil {
					a.log.Error("config: apply failed", "error", err)
				}
			})
			if err != nil {
				a.log.Error("config watcher stopped", "error", err)
			}
		}()
	}

	var srv *http.Server
	if a.cfg.HTTP.Port > 0 {
		h := api.New(api.Deps{
			Alerts:   a.alerts,
			Assessor: a.sched,
			Metrics:  a.metrics,
			Queue:    a.queueState,
			Stream:   a.hub,
			Logger:   a.log,
		})
		go a.hub.Run(ctx)
		srv = &http.Server{
			Addr:              ":" + strconv.Itoa(a.cfg.HTTP.Port),
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			a.log.Info("http listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("http server error", "error", err)
				cancel()
			}
		}()
	}

	<-ctx.Done()
	a.log.Info("assessor shutting down")

	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}
	// A queued manual or scheduled assessment finishes its current attempt.
	drainCtx, stop := context.WithTimeout(context.Background(), a.cfg.Inference.Timeout+5*time.Second)
	defer stop()
	if err := a.queue.Drain(drainCtx); err != nil {
		a.log.Warn("queue not drained before exit", "error", err, "pending", a.queue.Stats().Pending)
	}
	return nil
}

func (a *assessor) queueState() api.QueueState {
	st := a.queue.Stats()
	return api.QueueState{
		Idle:      a.queue.Idle(),
		Pending:   st.Pending,
		InFlight:  st.InFlight,
		Completed: int(st.Completed),
	}
}

func runOnce(c *cli.Context) error {
	a, err := build(c)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.sched.RunScheduledAssessment(c.Context)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func assess(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return cli.Exit("assess: batch id is required", 2)
	}
	a, err := build(c)
	if err != nil {
		return err
	}
	defer a.close()

	out, err := a.sched.AssessBatchNow(c.Context, id)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
