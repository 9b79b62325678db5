// Package server exposes a node over HTTP: the routed cache API used by
// clients, the replica API used by peers, and operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/ringcache/cluster"
)

// Node is the part of cluster.Router the handlers use.
type Node interface {
	RoutePut(ctx context.Context, key, value string)
	RoutePutTTL(ctx context.Context, key, value string, ttl time.Duration)
	RouteGet(ctx context.Context, key string) (string, bool)
	Delete(ctx context.Context, key string) bool

	ReplicaPut(key, value string, ttl time.Duration)
	ReplicaGet(key string) (string, bool)
	ReplicaDelete(key string) bool

	Clear()
	Len() int
}

var _ Node = (*cluster.Router)(nil)

// Options configures a Server. Zero values are safe.
type Options struct {
	Logger logrus.FieldLogger
	// Metrics serves GET /metrics when set, typically promhttp.HandlerFor.
	Metrics http.Handler
}

// Server routes HTTP requests to a Node.
type Server struct {
	node Node
	log  logrus.FieldLogger
	mux  *http.ServeMux
}

// New builds the handler tree for node.
func New(node Node, opt Options) *Server {
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	s := &Server{
		node: node,
		log:  opt.Logger.WithField("component", "http"),
		mux:  http.NewServeMux(),
	}

	// "POST /cache/{key}/ttl" and "POST /cache/replica/{key}" would both
	// match /cache/replica/ttl, so two-segment POSTs share one handler.
	s.mux.HandleFunc("POST /cache/{key}", s.put)
	s.mux.HandleFunc("POST /cache/{a}/{b}", s.postPair)
	s.mux.HandleFunc("GET /cache/{key}", s.get)
	s.mux.HandleFunc("DELETE /cache/{key}", s.delete)

	s.mux.HandleFunc("GET /cache/replica/{key}", s.replicaGet)
	s.mux.HandleFunc("DELETE /cache/replica/{key}", s.replicaDelete)

	s.mux.HandleFunc("DELETE /cache/clear", s.clear)
	s.mux.HandleFunc("GET /cache/size", s.size)

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	if opt.Metrics != nil {
		s.mux.Handle("GET /metrics", opt.Metrics)
	}
	return s
}

// Handler returns the root handler with access logging.
func (s *Server) Handler() http.Handler { return accessLog(s.log, s.mux) }

// ---- routed API ----

func (s *Server) put(w http.ResponseWriter, r *http.Request) {
	value, err := requiredParam(r, "value")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.node.RoutePut(r.Context(), r.PathValue("key"), value)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) postPair(w http.ResponseWriter, r *http.Request) {
	a, b := r.PathValue("a"), r.PathValue("b")
	switch {
	case a == "replica":
		s.replicaPut(w, r, b)
	case b == "ttl":
		s.putTTL(w, r, a)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) putTTL(w http.ResponseWriter, r *http.Request, key string) {
	value, err := requiredParam(r, "value")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	raw, err := requiredParam(r, "ttl")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	ttl, err := parseTTL(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if ttl == 0 {
		s.writeError(w, http.StatusBadRequest, badParam("ttl", "must be positive"))
		return
	}
	s.node.RoutePutTTL(r.Context(), key, value, ttl)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	v, ok := s.node.RouteGet(r.Context(), r.PathValue("key"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeText(w, http.StatusOK, v)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	if !s.node.Delete(r.Context(), r.PathValue("key")) {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ---- replica API ----

func (s *Server) replicaPut(w http.ResponseWriter, r *http.Request, key string) {
	value, err := requiredParam(r, "value")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var ttl time.Duration
	if raw := r.FormValue("ttl"); raw != "" {
		if ttl, err = parseTTL(raw); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	s.node.ReplicaPut(key, value, ttl)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) replicaGet(w http.ResponseWriter, r *http.Request) {
	v, ok := s.node.ReplicaGet(r.PathValue("key"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeText(w, http.StatusOK, v)
}

func (s *Server) replicaDelete(w http.ResponseWriter, r *http.Request) {
	if !s.node.ReplicaDelete(r.PathValue("key")) {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ---- local maintenance ----

func (s *Server) clear(w http.ResponseWriter, _ *http.Request) {
	s.node.Clear()
	s.log.Info("local cache cleared")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) size(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, strconv.Itoa(s.node.Len()))
}

// ---- helpers ----

// requiredParam reads name from the query string or a form body. An empty
// value is allowed; a missing one is not.
func requiredParam(r *http.Request, name string) (string, error) {
	if err := r.ParseForm(); err != nil {
		return "", errors.Wrap(err, errors.CodeInvalidInput, "parse request parameters")
	}
	vals, ok := r.Form[name]
	if !ok || len(vals) == 0 {
		return "", badParam(name, "missing required parameter")
	}
	return vals[0], nil
}

// maxTTLMillis is the largest TTL a time.Duration can hold.
const maxTTLMillis = math.MaxInt64 / int64(time.Millisecond)

// parseTTL reads a non-negative TTL in milliseconds.
func parseTTL(raw string) (time.Duration, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms < 0 {
		return 0, badParam("ttl", "must be a non-negative integer of milliseconds")
	}
	if ms > maxTTLMillis {
		return 0, badParam("ttl", "exceeds the maximum of "+strconv.FormatInt(maxTTLMillis, 10)+" ms")
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func badParam(name, msg string) error {
	return errors.WithContext(errors.New(errors.CodeInvalidInput, msg), "param", name)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.log.WithError(err).Debug("request rejected")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errors.ToJSON(err))
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
