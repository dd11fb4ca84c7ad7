// Package memory runs the redis store against an embedded miniredis server.
// Local runs and tests get the production command path without a Valkey
// instance. Fault injection and publish capture hook into the server.
package memory

import (
	"fmt"
	"sync"

	"github.com/alicebob/miniredis/v2"
	"github.com/alicebob/miniredis/v2/server"

	"github.com/kailas-cloud/flagdex/internal/db"
	dbRedis "github.com/kailas-cloud/flagdex/internal/db/redis"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Message is a captured PUBLISH.
type Message struct {
	Channel string
	Payload []byte
}

// Store is a redis store connected to its own miniredis server.
type Store struct {
	*dbRedis.Store
	srv *miniredis.Miniredis

	mu        sync.Mutex
	published []Message
	failNext  map[string]error
}

// New starts an empty server and connects a store to it.
func New() (*Store, error) {
	srv, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("start miniredis: %w", err)
	}

	st, err := dbRedis.NewStore(dbRedis.Config{Addrs: []string{srv.Addr()}})
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("connect miniredis: %w", err)
	}

	s := &Store{Store: st, srv: srv, failNext: make(map[string]error)}
	srv.Server().SetPreHook(s.intercept)
	return s, nil
}

// MustNew is New for tests and examples; it panics on error.
func MustNew() *Store {
	s, err := New()
	if err != nil {
		panic(err)
	}
	return s
}

// Close disconnects the client and stops the server.
func (s *Store) Close() {
	s.Store.Close()
	s.srv.Close()
}

// Addr returns the address the embedded server listens on.
func (s *Store) Addr() string { return s.srv.Addr() }

// FailNext makes the next command named op (a db.Op* constant) reply with err as a server error.
// LOADING and BUSY replies are retried by the client, so pick another prefix.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = err
}

// Published returns a copy of every message published so far.
func (s *Store) Published() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.published))
	copy(out, s.published)
	return out
}

// intercept runs before every command the server receives.
// Returning true means the reply was already written.
func (s *Store) intercept(c *server.Peer, cmd string, args ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failNext[cmd]; ok {
		delete(s.failNext, cmd)
		c.WriteError(err.Error())
		return true
	}
	if cmd == db.OpPublish && len(args) == 2 {
		s.published = append(s.published, Message{Channel: args[0], Payload: []byte(args[1])})
	}
	return false
}
