// Package cluster routes cache operations to the node that owns each key.
//
// A Router combines the node-local cache, an immutable consistent-hash ring
// built from the configured peers, and a Transport to reach those peers.
// Routing failures are contained here: RoutePut and ReplicateDelete log and
// carry on, RouteGet reports a miss. Writes are best effort (at most once,
// no retry) and the cluster is eventually consistent.
package cluster

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/ringcache/cache"
	"github.com/IvanBrykalov/ringcache/internal/singleflight"
	"github.com/IvanBrykalov/ringcache/ring"
)

// DefaultTimeout bounds every peer call when Config.Timeout is zero.
const DefaultTimeout = 3 * time.Second

// Config wires a Router.
type Config struct {
	// Self is this node's identifier, exactly as it appears in Peers.
	Self string
	// Peers lists every cluster member; it may or may not include Self.
	Peers []string
	// Local is this node's cache.
	Local cache.Cache[string, string]
	// Transport reaches the other peers. Required when Peers holds any
	// node other than Self.
	Transport Transport
	// Timeout bounds each peer call (default DefaultTimeout).
	Timeout time.Duration
	// BroadcastLimit caps concurrent delete fan-out; 0 means no cap.
	BroadcastLimit int
	// Ring tunes ring construction; zero value = 100 replicas, xxhash.
	Ring ring.Options

	Logger  logrus.FieldLogger
	Metrics Metrics
}

// Router decides, per operation, whether a key is served locally or by a
// peer. It holds no mutable state besides the singleflight table, so one
// Router serves any number of concurrent requests.
type Router struct {
	self      string
	peers     []string
	ring      *ring.Ring
	local     cache.Cache[string, string]
	transport Transport
	timeout   time.Duration
	limit     int
	log       logrus.FieldLogger
	metrics   Metrics

	lookups singleflight.Group[string, string]
}

// New validates cfg and builds the ring. The ring is never rebuilt.
func New(cfg Config) (*Router, error) {
	if cfg.Self == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "router: self id is required")
	}
	if cfg.Local == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "router: local cache is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetrics{}
	}

	rg := ring.New(cfg.Peers, cfg.Ring)
	peers := rg.Nodes()
	if cfg.Transport == nil {
		for _, p := range peers {
			if p != cfg.Self {
				return nil, errors.WithContext(
					errors.New(errors.CodeInvalidConfig, "router: transport is required with remote peers"),
					"peer", p)
			}
		}
	}

	return &Router{
		self:      cfg.Self,
		peers:     peers,
		ring:      rg,
		local:     cfg.Local,
		transport: cfg.Transport,
		timeout:   cfg.Timeout,
		limit:     cfg.BroadcastLimit,
		log:       cfg.Logger.WithFields(logrus.Fields{"component": "router", "self": cfg.Self}),
		metrics:   cfg.Metrics,
	}, nil
}

// Self returns this node's identifier.
func (r *Router) Self() string { return r.self }

// Peers returns the distinct configured peers.
func (r *Router) Peers() []string { return append([]string(nil), r.peers...) }

// IsSelf reports whether node is this node. Only an exact match counts.
func (r *Router) IsSelf(node string) bool { return node == r.self }

// Owner returns the node that owns key, or false when no peers are configured.
func (r *Router) Owner(key string) (string, bool) { return r.ring.Owner(key) }

// ownerOf resolves key's owner; local is true when this node owns the key
// or the ring is empty.
func (r *Router) ownerOf(key string) (owner string, local bool) {
	owner, ok := r.ring.Owner(key)
	return owner, !ok || r.IsSelf(owner)
}

// RoutePut stores key→value on its owner with the default TTL.
func (r *Router) RoutePut(ctx context.Context, key, value string) {
	r.routePut(ctx, key, value, 0)
}

// RoutePutTTL stores key→value on its owner with a TTL. It is routed the
// same way as RoutePut; the owner applies the TTL.
func (r *Router) RoutePutTTL(ctx context.Context, key, value string, ttl time.Duration) {
	r.routePut(ctx, key, value, ttl)
}

func (r *Router) routePut(ctx context.Context, key, value string, ttl time.Duration) {
	owner, local := r.ownerOf(key)
	if local {
		r.ReplicaPut(key, value, ttl)
		r.log.WithField("key", key).Debug("stored locally")
		return
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.transport.Put(cctx, owner, key, value, ttl); err != nil {
		r.failed(OpPut, owner, key, err)
		return
	}
	r.metrics.Forward(OpPut, ResultOK)
}

// RouteGet returns the value of key from its owner. A peer that cannot be
// reached is reported as a miss, indistinguishable from an absent key;
// use Lookup to tell the two apart.
func (r *Router) RouteGet(ctx context.Context, key string) (string, bool) {
	v, err := r.Lookup(ctx, key)
	return v, err == nil
}

// Lookup is RouteGet with distinct failure kinds: IsNotFound(err) when the
// owner does not hold the key, IsPeerFailure(err) when the owner could not
// be asked. Concurrent remote lookups of the same key share one peer call.
func (r *Router) Lookup(ctx context.Context, key string) (string, error) {
	owner, local := r.ownerOf(key)
	if local {
		if v, ok := r.local.Get(key); ok {
			return v, nil
		}
		return "", notFound(key)
	}

	v, err, _ := r.lookups.Do(ctx, key, func() (string, error) {
		// The call is shared, so only the router timeout bounds it; each
		// caller still stops waiting when its own ctx ends.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		v, found, err := r.transport.Get(cctx, owner, key)
		switch {
		case err != nil:
			return "", r.failed(OpGet, owner, key, err)
		case !found:
			r.metrics.Forward(OpGet, ResultNotFound)
			return "", notFound(key)
		}
		r.metrics.Forward(OpGet, ResultOK)
		return v, nil
	})
	if err != nil && errors.GetCode(err) == errors.CodeUnknown {
		// A follower gave up waiting on its own context.
		err = peerError(err, owner, OpGet)
	}
	return v, err
}

// Delete removes key from the local cache and then from every peer. It
// reports whether any node held the key. The local copy is removed even
// when this node is missing from the peer list.
func (r *Router) Delete(ctx context.Context, key string) bool {
	removed := r.local.Remove(key)
	return r.ReplicateDelete(ctx, key) > 0 || removed
}

// ReplicateDelete removes key from every configured peer, regardless of
// which node owns the key, so stale copies are cleared everywhere. The
// entry for this node is served from the local cache without a transport
// call. Remote peers are contacted concurrently; a failing peer is logged
// and does not stop the others. It returns how many peers removed the key.
func (r *Router) ReplicateDelete(ctx context.Context, key string) int {
	var removed atomic.Int32
	var g errgroup.Group
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}
	for _, peer := range r.peers {
		if r.IsSelf(peer) {
			if r.local.Remove(key) {
				removed.Add(1)
			}
			continue
		}
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			ok, err := r.transport.Delete(cctx, peer, key)
			switch {
			case err != nil:
				r.failed(OpDelete, peer, key, err)
			case ok:
				removed.Add(1)
				r.metrics.Forward(OpDelete, ResultOK)
			default:
				r.metrics.Forward(OpDelete, ResultNotFound)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(removed.Load())
}

// ReplicaPut stores key→value locally without routing. A non-positive ttl
// falls back to the cache's DefaultTTL, which is none unless configured.
func (r *Router) ReplicaPut(key, value string, ttl time.Duration) {
	if ttl > 0 {
		r.local.SetWithTTL(key, value, ttl)
		return
	}
	r.local.Set(key, value)
}

// ReplicaGet reads key from the local cache without routing.
func (r *Router) ReplicaGet(key string) (string, bool) { return r.local.Get(key) }

// ReplicaDelete removes key from the local cache without routing.
func (r *Router) ReplicaDelete(key string) bool { return r.local.Remove(key) }

// Clear empties the local cache only; peers are not contacted.
func (r *Router) Clear() { r.local.Clear() }

// Len returns the number of entries resident in the local cache.
func (r *Router) Len() int { return r.local.Len() }

// failed logs and counts a transport failure and returns the classified error.
func (r *Router) failed(op, peer, key string, err error) error {
	err = peerError(err, peer, op)
	r.metrics.Forward(op, ResultError)
	r.log.WithFields(logrus.Fields{
		"op":   op,
		"peer": peer,
		"key":  key,
		"code": errors.GetCode(err),
	}).WithError(err).Warn("peer call failed")
	return err
}
