// Package config loads the node configuration: defaults, then an optional
// YAML file, then command line overrides applied by the caller.
package config

import (
	"bytes"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/ringcache/cache"
	"github.com/IvanBrykalov/ringcache/cluster"
	"github.com/IvanBrykalov/ringcache/policy/lru"
	"github.com/IvanBrykalov/ringcache/policy/twoq"
)

// Config is the full node configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// Self is this node's id; peers reach it at this base URL.
	Self string `yaml:"self"`
	// Peers lists every node's base URL. It may omit Self.
	Peers []string `yaml:"peers"`

	Cache   Cache   `yaml:"cache"`
	Cluster Cluster `yaml:"cluster"`
	Log     Log     `yaml:"log"`
}

// Cache configures the node-local store.
type Cache struct {
	Capacity   int           `yaml:"capacity"`
	Shards     int           `yaml:"shards"`
	Policy     string        `yaml:"policy"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// Cluster configures routing.
type Cluster struct {
	Timeout        time.Duration `yaml:"timeout"`
	BroadcastLimit int           `yaml:"broadcast_limit"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Listen: ":8080",
		Cache: Cache{
			Capacity: cache.DefaultCapacity,
			Shards:   1,
			Policy:   lru.Name,
		},
		Cluster: Cluster{Timeout: cluster.DefaultTimeout},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WrapWithContext(err, errors.CodeInvalidConfig, "read config file",
			map[string]interface{}{"path": path})
	}
	if err := decode(bytes.NewReader(b), &cfg); err != nil {
		return cfg, errors.WithContext(err, "path", path)
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return errors.Wrap(err, errors.CodeInvalidConfig, "parse config")
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Listen == "":
		return invalid("listen", "listen address is required")
	case c.Self == "":
		return invalid("self", "node id is required")
	case slices.Contains(c.Peers, ""):
		return invalid("peers", "peer ids must not be empty")
	case c.Cache.Capacity < 0:
		return invalid("cache.capacity", "must not be negative")
	case c.Cache.Shards < 0:
		return invalid("cache.shards", "must not be negative")
	case c.Cache.DefaultTTL < 0:
		return invalid("cache.default_ttl", "must not be negative")
	case c.Cluster.Timeout < 0:
		return invalid("cluster.timeout", "must not be negative")
	case c.Cluster.BroadcastLimit < 0:
		return invalid("cluster.broadcast_limit", "must not be negative")
	}
	if c.Cache.Policy != lru.Name && c.Cache.Policy != twoq.Name {
		return invalid("cache.policy", "unknown policy "+c.Cache.Policy)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.WrapWithContext(err, errors.CodeInvalidConfig, "invalid setting",
			map[string]interface{}{"field": "log.level"})
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format", "must be text or json")
	}
	return nil
}

// Warnings lists settings that are accepted but probably unintended.
func (c Config) Warnings() []string {
	var w []string
	if len(c.Peers) > 0 && !slices.Contains(c.Peers, c.Self) {
		w = append(w, "self "+c.Self+" is not in the peer list; this node will own no keys")
	}
	return w
}

// SplitPeers parses a comma-separated peer list, dropping blanks.
func SplitPeers(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Logger builds a logrus logger writing to out.
func (l Log) Logger(out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "parse log level")
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)
	if l.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

func invalid(field, msg string) error {
	return errors.WithContext(errors.New(errors.CodeInvalidConfig, msg), "field", field)
}
