package redis

import (
	"context"

	"github.com/kailas-cloud/flagdex/internal/db"
)

// Publish sends message to channel and returns the number of receiving subscribers.
func (s *Store) Publish(ctx context.Context, channel string, message []byte) (int64, error) {
	cmd := s.b().Publish().Channel(channel).Message(string(message)).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpPublish, Err: err}
	}
	return n, nil
}
