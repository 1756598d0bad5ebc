package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/encodeous/vrouter/core"
	"github.com/encodeous/vrouter/state"
)

// Module runs the management api for the lifetime of the runtime.
type Module struct {
	srv *http.Server
	ln  net.Listener
}

func (m *Module) Init(e *core.Env) error {
	if e.Cfg.Api == "" {
		e.Log.Info("management api disabled")
		return nil
	}
	ln, err := net.Listen("tcp", e.Cfg.Api)
	if err != nil {
		return err
	}
	m.ln = ln
	m.srv = &http.Server{
		Handler:           NewServer(e.Log.With("module", "api"), e.Manager).Handler(),
		ReadHeaderTimeout: state.ApiRequestTimeout,
		BaseContext: func(net.Listener) context.Context {
			return e.Context
		},
	}
	e.Log.Info("exposing management api", "addr", ln.Addr().String())
	go func() {
		err := m.srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Cancel(err)
		}
	}()
	return nil
}

// Addr is the address the api listens on, nil when disabled.
func (m *Module) Addr() net.Addr {
	if m.ln == nil {
		return nil
	}
	return m.ln.Addr()
}

func (m *Module) Cleanup(e *core.Env) error {
	if m.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	defer cancel()
	return m.srv.Shutdown(ctx)
}
