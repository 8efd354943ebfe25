package services

import (
	"context"
	"sync"
	"time"

	"support-router/models"
)

// MaxHistoryTurns bounds how many turns are kept per customer.
const MaxHistoryTurns = 40

type historyEntry struct {
	turns     []models.Turn
	expiresAt time.Time
}

// MemoryHistoryStore keeps onboarding conversations in process memory.
// Entries expire ttl after their last append.
type MemoryHistoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*historyEntry
	now     func() time.Time
}

func NewMemoryHistoryStore(ttl time.Duration) *MemoryHistoryStore {
	return &MemoryHistoryStore{
		ttl:     ttl,
		entries: make(map[string]*historyEntry),
		now:     time.Now,
	}
}

// Load returns a copy of the turns for psid, nil when absent or expired.
func (s *MemoryHistoryStore) Load(_ context.Context, psid string) ([]models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[psid]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, psid)
		return nil, nil
	}
	out := make([]models.Turn, len(entry.turns))
	copy(out, entry.turns)
	return out, nil
}

func (s *MemoryHistoryStore) Append(_ context.Context, psid string, turns ...models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[psid]
	if !ok || !now.Before(entry.expiresAt) {
		entry = &historyEntry{}
		s.entries[psid] = entry
	}
	entry.turns = append(entry.turns, turns...)
	if len(entry.turns) > MaxHistoryTurns {
		entry.turns = entry.turns[len(entry.turns)-MaxHistoryTurns:]
	}
	entry.expiresAt = now.Add(s.ttl)
	return nil
}

func (s *MemoryHistoryStore) Clear(_ context.Context, psid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, psid)
	return nil
}

// EvictExpired drops every expired entry and returns how many were removed.
func (s *MemoryHistoryStore) EvictExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for psid, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, psid)
			count++
		}
	}
	return count, nil
}

// Len returns the number of tracked conversations, expired or not.
func (s *MemoryHistoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
