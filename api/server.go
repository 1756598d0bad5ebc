// Package api serves the management interface used to inspect and reshape a running simulation.
package api

import (
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"net/netip"
	"slices"

	"github.com/encodeous/vrouter/core"
	"github.com/encodeous/vrouter/packet"
	"github.com/encodeous/vrouter/perf"
	"github.com/encodeous/vrouter/state"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
)

type Server struct {
	log *slog.Logger
	mgr *core.RouterManager
}

func NewServer(logger *slog.Logger, mgr *core.RouterManager) *Server {
	return &Server{log: logger, mgr: mgr}
}

// Handler returns the routes of the management api.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(state.ApiRequestTimeout))
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/routers", s.listRouters)
		r.Post("/routers", s.createRouter)
		r.Get("/routers/{id}", s.getRouter)
		r.Delete("/routers/{id}", s.deleteRouter)
		r.Put("/routers/{id}/routes", s.setRoute)
		r.Delete("/routers/{id}/routes/*", s.deleteRoute)
		r.Post("/routers/{id}/packets", s.sendPacket)
		r.Get("/routers/{id}/reach/{dst}", s.reach)
		r.Get("/links", s.listLinks)
		r.Post("/links", s.createLink)
		r.Delete("/links/{a}/{b}", s.deleteLink)
	})
	r.Handle("/debug/metrics", perf.Handler())
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("api request", "method", r.Method, "path", r.URL.Path, "status", ww.Status())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing useful can be done about a failed write at this point
	_ = json.MarshalWrite(w, v, jsontext.Multiline(true), jsontext.WithIndent("    "))
}

func writeProblem(w http.ResponseWriter, status int, title string, err error) {
	p := Problem{Title: title, Status: status}
	if err != nil {
		p.Detail = err.Error()
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.MarshalWrite(w, p)
}

// statusOf maps domain errors to http status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, core.ErrRouterNotFound),
		errors.Is(err, core.ErrLinkNotFound),
		errors.Is(err, core.ErrRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRouterExists),
		errors.Is(err, core.ErrLinkExists),
		errors.Is(err, core.ErrAddressInUse),
		errors.Is(err, core.ErrRouterStopped):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, core.ErrSelfLink):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, title string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.Error(title, "error", err)
	}
	writeProblem(w, status, title, err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.UnmarshalRead(r.Body, v, json.RejectUnknownMembers(true))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "malformed request body", err)
		return false
	}
	return true
}

func (s *Server) router(w http.ResponseWriter, r *http.Request) (*core.Router, bool) {
	rt, err := s.mgr.GetRouter(state.RouterId(chi.URLParam(r, "id")))
	if err != nil {
		s.fail(w, "unknown router", err)
		return nil, false
	}
	return rt, true
}

func (s *Server) listRouters(w http.ResponseWriter, _ *http.Request) {
	out := make([]Router, 0)
	for _, r := range s.mgr.ListRouters() {
		out = append(out, routerView(r))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createRouter(w http.ResponseWriter, r *http.Request) {
	var req CreateRouter
	if !decode(w, r, &req) {
		return
	}
	if req.Id == "" {
		req.Id = state.RouterId(uuid.NewString())
	}
	if req.Name == "" {
		req.Name = string(req.Id)
	}
	rt, err := s.mgr.AddRouter(req.Id, req.Name, req.Address)
	if err != nil {
		s.fail(w, "cannot create router", err)
		return
	}
	writeJSON(w, http.StatusCreated, routerView(rt))
}

func (s *Server) getRouter(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.router(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, routerView(rt))
}

func (s *Server) deleteRouter(w http.ResponseWriter, r *http.Request) {
	err := s.mgr.RemoveRouter(state.RouterId(chi.URLParam(r, "id")))
	if err != nil {
		s.fail(w, "cannot remove router", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setRoute(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.router(w, r)
	if !ok {
		return
	}
	var req Route
	if !decode(w, r, &req) {
		return
	}
	if err := rt.SetStaticRoute(req.Dst, req.Via); err != nil {
		s.fail(w, "cannot set route", err)
		return
	}
	writeJSON(w, http.StatusOK, routerView(rt))
}

// deleteRoute takes the destination from the rest of the path so that prefixes like 10.0.0.0/24 work unescaped.
func (s *Server) deleteRoute(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.router(w, r)
	if !ok {
		return
	}
	if err := rt.RemoveStaticRoute(chi.URLParam(r, "*")); err != nil {
		s.fail(w, "cannot remove route", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sendPacket(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.router(w, r)
	if !ok {
		return
	}
	var req SendPacket
	if !decode(w, r, &req) {
		return
	}
	if req.Src == "" {
		req.Src = rt.Addr().String()
	}
	p := core.Packet{SrcIP: req.Src, DstIP: req.Dst, Data: req.Data}
	if req.Echo {
		src, err := netip.ParseAddr(req.Src)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "invalid source", err)
			return
		}
		dst, err := netip.ParseAddr(req.Dst)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "invalid destination", err)
			return
		}
		p.Data, err = packet.CreateICMPEchoRequest(src, dst, uint16(uuid.New().ID()), 1, []byte("vrouter"))
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "cannot build echo request", err)
			return
		}
	}
	if err := rt.SendPacket(p); err != nil {
		s.fail(w, "cannot send packet", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) listLinks(w http.ResponseWriter, _ *http.Request) {
	out := make([]Link, 0)
	for _, l := range s.mgr.Links() {
		out = append(out, linkView(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createLink(w http.ResponseWriter, r *http.Request) {
	var req Link
	if !decode(w, r, &req) {
		return
	}
	if req.Cost == 0 {
		req.Cost = state.DefaultLinkCost
	}
	if err := s.mgr.AddLinkBetweenRouters(req.A, req.B, req.AddrA, req.AddrB, req.Cost); err != nil {
		s.fail(w, "cannot create link", err)
		return
	}
	for _, l := range s.mgr.Links() {
		if state.MakeSortedPair(l.A, l.B) == state.MakeSortedPair(req.A, req.B) {
			writeJSON(w, http.StatusCreated, linkView(l))
			return
		}
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) deleteLink(w http.ResponseWriter, r *http.Request) {
	a, b := state.RouterId(chi.URLParam(r, "a")), state.RouterId(chi.URLParam(r, "b"))
	if err := s.mgr.RemoveLinkBetweenRouters(a, b); err != nil {
		s.fail(w, "cannot remove link", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sortedPeers(links map[state.RouterId]core.LinkInfo) []state.RouterId {
	return slices.Sorted(maps.Keys(links))
}

func (s *Server) reach(w http.ResponseWriter, r *http.Request) {
	id := state.RouterId(chi.URLParam(r, "id"))
	t, err := s.mgr.Trace(id, chi.URLParam(r, "dst"))
	if err != nil {
		s.fail(w, "cannot trace destination", err)
		return
	}
	writeJSON(w, http.StatusOK, reachView(id, t))
}
