package flagdex

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/flagdex/internal/db"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey" or "redis"
	addrs    []string
	password string
	db       int

	store db.Store // preset store, bypasses driver selection

	keyspace   Keyspace
	moderators []string

	parentRoom     string
	scopeRoom      string
	eventName      string
	publishTimeout time.Duration

	defaultPageSize int
	maxPageSize     int
	opTimeout       time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey configures the client to connect to a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithDB selects the logical database of a standalone instance.
func WithDB(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.db = n
	})
}

// WithKeyspace overrides key and field names. Empty fields keep the defaults.
func WithKeyspace(ks Keyspace) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyspace = ks
	})
}

// WithModerators grants flag permission on every entity to the given actors.
func WithModerators(ids ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.moderators = append(c.moderators, ids...)
	})
}

// WithRooms sets the broadcast channel templates. {id} is replaced with the
// parent or scope id. Defaults: topic_{id} and category_{id}.
func WithRooms(parentRoom, scopeRoom string) Option {
	return optionFunc(func(c *clientConfig) {
		c.parentRoom = parentRoom
		c.scopeRoom = scopeRoom
	})
}

// WithEventName sets the event name carried by broadcasts.
func WithEventName(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.eventName = name
	})
}

// WithPublishTimeout bounds each asynchronous broadcast. Default: 2s.
func WithPublishTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.publishTimeout = d
	})
}

// WithPagination sets the default and maximum page sizes of List.
// Defaults: 20 and 100.
func WithPagination(defaultSize, maxSize int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultPageSize = defaultSize
		c.maxPageSize = maxSize
	})
}

// WithOpTimeout bounds every flag operation. Zero disables the deadline.
func WithOpTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.opTimeout = d
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

func withStore(s db.Store) Option {
	return optionFunc(func(c *clientConfig) {
		c.store = s
	})
}
