package reengage

import (
	"context"
	"sync"
	"time"
)

// TopicStats is the learned, cross-session outcome record for a topic.
type TopicStats struct {
	TopicID     string    `json:"topic_id"`
	Attempts    int       `json:"attempts"`
	Successes   int       `json:"successes"`
	SuccessRate float64   `json:"success_rate"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StatsStore persists topic success rates. Implementations are shared by
// every session and must be safe for concurrent use.
type StatsStore interface {
	Load(ctx context.Context) (map[string]TopicStats, error)
	Record(ctx context.Context, topicID string, success bool, rate float64) error
	Close() error
}

type MemoryStatsStore struct {
	mu    sync.RWMutex
	stats map[string]TopicStats
	now   func() time.Time
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{stats: make(map[string]TopicStats), now: time.Now}
}

func (s *MemoryStatsStore) Load(context.Context) (map[string]TopicStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]TopicStats, len(s.stats))
	for k, v := range s.stats {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStatsStore) Record(_ context.Context, topicID string, success bool, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[topicID]
	st.TopicID = topicID
	st.Attempts++
	if success {
		st.Successes++
	}
	st.SuccessRate = rate
	st.UpdatedAt = s.now()
	s.stats[topicID] = st
	return nil
}

func (s *MemoryStatsStore) Close() error { return nil }
