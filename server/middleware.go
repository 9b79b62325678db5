package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/ringcache/cluster"
)

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// accessLog logs one line per request. Replica traffic from peers is
// logged at debug so routed requests stay readable at info.
func accessLog(log logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.EscapedPath(),
			"status":   rec.status,
			"duration": time.Since(start),
			"remote":   r.RemoteAddr,
		})
		if isQuiet(r.URL.Path) {
			entry.Debug("request")
			return
		}
		entry.Info("request")
	})
}

func isQuiet(path string) bool {
	return path == "/healthz" || path == "/metrics" || strings.HasPrefix(path, cluster.ReplicaPath)
}
