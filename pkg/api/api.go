// Package api exposes a read-only HTTP view of a running mesh node:
// address, learned routes, table occupancy and per-peer traffic counters.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/meshwire/meshwire/internal/httputil"
	"github.com/meshwire/meshwire/pkg/frame"
	"github.com/meshwire/meshwire/pkg/link"
	"github.com/meshwire/meshwire/pkg/mesh"
	"github.com/meshwire/meshwire/pkg/routing"
)

var log = logging.MustGetLogger("api")

// Summary is the top-level node status document.
type Summary struct {
	Addr            frame.Addr `json:"addr"`
	NetworkID       uint32     `json:"network_id"`
	QueueLen        int        `json:"queue_len"`
	SeenIDs         int        `json:"seen_ids"`
	Routes          int        `json:"routes"`
	PendingConfirms int        `json:"pending_confirms"`
}

// API serves the node status endpoints.
type API struct {
	net  *mesh.Network
	logs link.LogStore
	r    chi.Router
}

// New returns an API for n. logs may be nil when traffic accounting is
// disabled.
func New(n *mesh.Network, logs link.LogStore) *API {
	api := &API{net: n, logs: logs}

	r := chi.NewRouter()
	r.Use(middleware.Timeout(30 * time.Second))
	r.Get("/status", api.status)
	r.Get("/routes", api.routes)
	r.Get("/log/{peer}", api.peerLog)
	api.r = r

	return api
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	a.r.ServeHTTP(w, req)
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, r, http.StatusOK, Summary{
		Addr:            a.net.Addr(),
		NetworkID:       a.net.Config().NetworkID,
		QueueLen:        a.net.QueueLen(),
		SeenIDs:         a.net.SeenCount(),
		Routes:          len(a.net.Routes()),
		PendingConfirms: a.net.PendingConfirms(),
	})
}

func (a *API) routes(w http.ResponseWriter, r *http.Request) {
	routes := a.net.Routes()
	if routes == nil {
		routes = []routing.Entry{}
	}
	httputil.WriteJSON(w, r, http.StatusOK, routes)
}

func (a *API) peerLog(w http.ResponseWriter, r *http.Request) {
	if a.logs == nil {
		httputil.WriteJSON(w, r, http.StatusNotFound, map[string]string{"error": "traffic accounting disabled"})
		return
	}

	peer, err := frame.ParseAddr(chi.URLParam(r, "peer"))
	if err != nil {
		httputil.WriteJSON(w, r, http.StatusBadRequest, err)
		return
	}

	entry, err := a.logs.Entry(peer)
	if err != nil {
		log.Warnf("log store: %v", err)
		httputil.WriteJSON(w, r, http.StatusInternalServerError, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, entry)
}
