package policy

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

// Store holds the active engine. Requests read it without locking; Reload
// swaps in a new engine only when the file parses completely.
type Store struct {
	path   string
	active atomic.Pointer[Engine]
	log    zerolog.Logger
}

// NewStore loads path. When loading fails the store still returns, holding an
// empty engine that denies every request, alongside the error.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	s := &Store{path: path, log: log}
	engine, err := LoadFile(path)
	s.active.Store(engine)
	if err != nil {
		return s, err
	}
	log.Info().Str("path", path).Int("rules", engine.Len()).Msg("policies loaded")
	return s, nil
}

// Decide evaluates the request against the active engine.
func (s *Store) Decide(roles []domain.RoleName, action, resource string) bool {
	return s.active.Load().Decide(roles, action, resource)
}

// Reload re-reads the policy file. The previous engine stays active on error.
func (s *Store) Reload() error {
	engine, err := LoadFile(s.path)
	if err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("policy reload failed, keeping previous rules")
		return err
	}
	s.active.Store(engine)
	s.log.Info().Str("path", s.path).Int("rules", engine.Len()).Msg("policies reloaded")
	return nil
}
