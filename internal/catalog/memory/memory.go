// Package memory provides a map-backed catalog store for tests, examples,
// and running the gateway without a database.
package memory

import (
	"context"
	"sync"

	"github.com/simobotlist/gateway/internal/catalog"
)

// Store is an in-memory catalog.Store. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	bots  map[catalog.Snowflake]*catalog.Bot
	users map[catalog.Snowflake]*catalog.User
}

var _ catalog.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		bots:  make(map[catalog.Snowflake]*catalog.Bot),
		users: make(map[catalog.Snowflake]*catalog.User),
	}
}

// PutBot stores or replaces a bot record.
func (s *Store) PutBot(bot catalog.Bot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bots[bot.ID] = &bot
}

// PutUser stores or replaces a user record.
func (s *Store) PutUser(user catalog.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = &user
}

func (s *Store) FindBotByAPIKey(_ context.Context, apiKey string) (*catalog.Bot, error) {
	if apiKey == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, bot := range s.bots {
		if bot.APIKey == apiKey {
			out := *bot
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) FindBotByID(_ context.Context, id catalog.Snowflake) (*catalog.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if bot, ok := s.bots[id]; ok {
		out := *bot
		return &out, nil
	}
	return nil, nil
}

func (s *Store) FindUserByID(_ context.Context, id catalog.Snowflake) (*catalog.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		out := *user
		return &out, nil
	}
	return nil, nil
}

func (s *Store) CountBots(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bots), nil
}

func (s *Store) CountUsers(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}
