package reporting

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// ServiceStateSnapshot is the last known state of one service.
type ServiceStateSnapshot struct {
	Label       string
	SourceType  ServiceType
	State       ServiceState
	IsReady     bool
	ErrorDetail error
	PID         int
	Port        int
	URL         string
	RunID       string
	LastUpdated time.Time
}

// StateStore keeps the latest snapshot per service label.
type StateStore interface {
	// SetServiceState records update and reports whether the state changed.
	SetServiceState(update ManagedServiceUpdate) (bool, error)
	GetServiceState(label string) (ServiceStateSnapshot, bool)
	GetAllServiceStates() []ServiceStateSnapshot
	Clear(label string) bool
}

type stateStore struct {
	mu       sync.RWMutex
	services map[string]ServiceStateSnapshot
}

// NewStateStore creates an empty in-memory store.
func NewStateStore() StateStore {
	return &stateStore{services: make(map[string]ServiceStateSnapshot)}
}

func (s *stateStore) SetServiceState(update ManagedServiceUpdate) (bool, error) {
	if update.SourceLabel == "" {
		return false, fmt.Errorf("update from %s has no source label", update.SourceType)
	}
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.services[update.SourceLabel]
	changed := !exists || prev.State != update.State || prev.IsReady != update.IsReady || prev.PID != update.PID

	s.services[update.SourceLabel] = ServiceStateSnapshot{
		Label:       update.SourceLabel,
		SourceType:  update.SourceType,
		State:       update.State,
		IsReady:     update.IsReady,
		ErrorDetail: update.ErrorDetail,
		PID:         update.PID,
		Port:        update.Port,
		URL:         update.URL,
		RunID:       update.RunID,
		LastUpdated: update.Timestamp,
	}
	return changed, nil
}

func (s *stateStore) GetServiceState(label string) (ServiceStateSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.services[label]
	return snap, ok
}

// GetAllServiceStates returns the snapshots sorted by label.
func (s *stateStore) GetAllServiceStates() []ServiceStateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ServiceStateSnapshot, 0, len(s.services))
	for _, snap := range s.services {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func (s *stateStore) Clear(label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[label]; !ok {
		return false
	}
	delete(s.services, label)
	return true
}
