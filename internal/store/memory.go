package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Priya8975/webhook-notifier/internal/domain"
)

// MemoryStore serves registrations and records activity in process memory.
// It backs local runs without DATABASE_URL and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	registrations map[string]domain.WebhookRegistration
	activity      []domain.ActivityEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{registrations: make(map[string]domain.WebhookRegistration)}
}

// Put stores or replaces a registration, assigning an id when it has none.
func (s *MemoryStore) Put(reg domain.WebhookRegistration) domain.WebhookRegistration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now
	reg.Events = append([]string(nil), reg.Events...)

	s.registrations[reg.ID] = reg
	return reg
}

func (s *MemoryStore) GetRegistration(_ context.Context, tenantID, id string) (*domain.WebhookRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.registrations[id]
	if !ok || reg.TenantID != tenantID {
		return nil, nil
	}
	return &reg, nil
}

func (s *MemoryStore) FindSubscribed(_ context.Context, tenantID, eventType string) ([]domain.WebhookRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	regs := []domain.WebhookRegistration{}
	for _, reg := range s.registrations {
		if reg.TenantID == tenantID && reg.IsActive && reg.Subscribes(eventType) {
			regs = append(regs, reg)
		}
	}
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].CreatedAt.Equal(regs[j].CreatedAt) {
			return regs[i].ID < regs[j].ID
		}
		return regs[i].CreatedAt.Before(regs[j].CreatedAt)
	})
	return regs, nil
}

func (s *MemoryStore) RecordActivity(_ context.Context, entry *domain.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()
	s.activity = append(s.activity, *entry)
	return nil
}

// Activity returns the recorded entries for a tenant, oldest first.
func (s *MemoryStore) Activity(tenantID string) []domain.ActivityEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ActivityEntry
	for _, e := range s.activity {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out
}
