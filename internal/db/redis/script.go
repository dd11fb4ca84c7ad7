package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/flagdex/internal/db"
)

// Eval runs script via EVALSHA, falling back to EVAL when the server has not cached it yet.
func (s *Store) Eval(ctx context.Context, script *db.Script, keys, args []string) ([]string, error) {
	reply, err := s.lua(script).Exec(ctx, s.client, keys, args).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpEval, Err: err}
	}
	return reply, nil
}

func (s *Store) lua(script *db.Script) *rueidis.Lua {
	if l, ok := s.scripts.Load(script); ok {
		return l.(*rueidis.Lua)
	}
	l, _ := s.scripts.LoadOrStore(script, rueidis.NewLuaScript(script.Source()))
	return l.(*rueidis.Lua)
}
