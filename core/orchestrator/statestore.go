package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rheinberg/docflow/model"
)

// StateStore caches the per-document pipeline state. The store is a
// cache view only: losing an entry is always recoverable through
// Orchestrator.RebuildState from the persisted records.
type StateStore interface {
	GetState(documentRID uuid.UUID) (*model.PipelineState, error)
	SetState(documentRID uuid.UUID, state *model.PipelineState) error
	SetPhase(documentRID uuid.UUID, phase model.Phase, record model.PhaseRecord) error
	DeleteState(documentRID uuid.UUID) error
}

const (
	defaultStateExpiry  = 24 * time.Hour
	defaultStateCleanup = 1 * time.Hour
)

// MemoryStateStore keeps pipeline states in an expiring in-memory cache
type MemoryStateStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewMemoryStateStore creates a state store with the given entry
// expiry. A non-positive expiry keeps entries until deletion.
func NewMemoryStateStore(expiry time.Duration) *MemoryStateStore {
	if expiry <= 0 {
		expiry = cache.NoExpiration
	}
	return &MemoryStateStore{
		cache: cache.New(expiry, defaultStateCleanup),
	}
}

// NewDefaultStateStore creates a state store with the default expiry
func NewDefaultStateStore() *MemoryStateStore {
	return NewMemoryStateStore(defaultStateExpiry)
}

func stateKey(documentRID uuid.UUID) string {
	return fmt.Sprintf("pipeline:%s", documentRID)
}

// GetState returns the cached state of a document or nil if none is
// cached
func (s *MemoryStateStore) GetState(documentRID uuid.UUID) (*model.PipelineState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, found := s.cache.Get(stateKey(documentRID))
	if !found {
		return nil, nil
	}

	state, ok := value.(*model.PipelineState)
	if !ok {
		return nil, fmt.Errorf("unexpected state type %T", value)
	}
	return state, nil
}

// SetState replaces the cached state of a document
func (s *MemoryStateStore) SetState(documentRID uuid.UUID, state *model.PipelineState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.SetDefault(stateKey(documentRID), state)
	return nil
}

// SetPhase updates one phase record and the derived progress
func (s *MemoryStateStore) SetPhase(documentRID uuid.UUID, phase model.Phase, record model.PhaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := model.NewPipelineState()
	if value, found := s.cache.Get(stateKey(documentRID)); found {
		if cached, ok := value.(*model.PipelineState); ok {
			state = cached
		}
	}

	state.Phases[phase] = record
	state.RecomputeProgress()
	s.cache.SetDefault(stateKey(documentRID), state)
	return nil
}

// DeleteState drops the cached state of a document
func (s *MemoryStateStore) DeleteState(documentRID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Delete(stateKey(documentRID))
	return nil
}
