package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"reflect"
	"runtime/trace"
	"syscall"
	"time"

	"github.com/encodeous/tint"
	"github.com/encodeous/vrouter/device"
	"github.com/encodeous/vrouter/state"
	slogmulti "github.com/samber/slog-multi"
)

// Module is an auxiliary service that lives as long as the runtime, such as the management api.
type Module interface {
	Init(e *Env) error
	Cleanup(e *Env) error
}

// Env is shared by the runtime and its modules.
type Env struct {
	context.Context
	Cancel  context.CancelCauseFunc
	Log     *slog.Logger
	Cfg     *state.TopologyCfg
	Manager *RouterManager
}

func setupDebugging() func() {
	stop := func() {}
	if state.DBG_trace {
		f, err := os.Create("trace.out")
		if err != nil {
			log.Fatal(err)
		}
		if err = trace.Start(f); err != nil {
			log.Println("failed to start tracing:", err)
			_ = f.Close()
		} else {
			log.Println("Started tracing")
			stop = func() {
				trace.Stop()
				_ = f.Close()
			}
		}
	}
	if state.DBG_debug {
		go func() {
			log.Println(http.ListenAndServe("0.0.0.0:6060", nil))
		}()
	}
	return stop
}

// NewLogger builds the console logger, fanned out to logPath when it is set.
func NewLogger(level slog.Level, prefix, logPath string) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        level,
			AddSource:    false,
			CustomPrefix: prefix,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if logPath != "" {
		err := os.MkdirAll(path.Dir(logPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// LoadTopology reads, expands and validates a topology file.
func LoadTopology(configPath string) (*state.TopologyCfg, error) {
	cfg, err := state.ReadTopologyConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err = state.ExpandTopologyConfig(cfg); err != nil {
		return nil, err
	}
	if err = state.TopologyValidator(cfg); err != nil {
		return nil, fmt.Errorf("invalid topology %s: %w", configPath, err)
	}
	return cfg, nil
}

// Bootstrap runs the simulation described by configPath until a shutdown signal arrives.
func Bootstrap(configPath, logPath string, verbose bool, modules ...Module) error {
	stopDebug := setupDebugging()
	defer stopDebug()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	cfg, err := LoadTopology(configPath)
	if err != nil {
		return err
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}
	logger, err := NewLogger(level, "vrouter", cfg.LogPath)
	if err != nil {
		return err
	}
	return Start(context.Background(), cfg, logger, modules...)
}

// Start builds the routers of cfg, initializes the modules and blocks in MainLoop until
// ctx is done or a shutdown signal arrives.
func Start(ctx context.Context, cfg *state.TopologyCfg, logger *slog.Logger, modules ...Module) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(context.Canceled)

	factory, err := device.NewFactory(logger, device.Options{
		Driver:    cfg.Tun.Driver,
		MTU:       cfg.Tun.MTU,
		Configure: cfg.Tun.Configure,
	})
	if err != nil {
		return err
	}
	e := &Env{
		Context: ctx,
		Cancel:  cancel,
		Log:     logger,
		Cfg:     cfg,
		Manager: NewRouterManager(logger, factory),
	}

	e.Log.Info("building topology", "routers", len(cfg.Routers), "links", len(cfg.Links), "routes", len(cfg.Routes))
	if err = e.Manager.ApplyTopology(cfg); err != nil {
		return errors.Join(err, e.Manager.Close())
	}

	initialized := make([]Module, 0, len(modules))
	for _, m := range modules {
		if err = m.Init(e); err != nil {
			e.Cancel(err)
			cleanup(e, initialized)
			return errors.Join(fmt.Errorf("init %s: %w", reflect.TypeOf(m).String(), err), e.Manager.Close())
		}
		initialized = append(initialized, m)
	}

	e.Log.Info("vrouter has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		select {
		case <-c:
			e.Cancel(errors.New("received shutdown signal"))
		case <-ctx.Done():
		}
	}()

	MainLoop(e, state.StatsLogInterval)
	cleanup(e, initialized)
	e.Log.Info("stopping routers")
	err = e.Manager.Close()
	e.Log.Info("stopped")
	return err
}

// MainLoop periodically reports router statistics until the environment is cancelled.
func MainLoop(e *Env, interval time.Duration) {
	e.Log.Debug("started main loop")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, r := range e.Manager.ListRouters() {
				s := r.Stats()
				e.Log.Debug("router stats", "router", r.Id,
					"received", s.Received, "forwarded", s.Forwarded, "delivered", s.Delivered,
					"echo", s.EchoReplies, "dropped", s.Dropped)
			}
		case <-e.Done():
			e.Log.Info("stopped main loop", "reason", context.Cause(e.Context).Error())
			return
		}
	}
}

func cleanup(e *Env, modules []Module) {
	for i := len(modules) - 1; i >= 0; i-- {
		if err := modules[i].Cleanup(e); err != nil {
			e.Log.Error("error occurred during cleanup", "module", reflect.TypeOf(modules[i]).String(), "error", err)
		}
	}
}
