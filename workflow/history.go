package workflow

import (
	"sync"
	"time"

	"github.com/loomworks/loom/internal/metrics"
)

// HistoryFilter narrows a history query. Zero-value fields are ignored.
type HistoryFilter struct {
	WorkflowID string
	Status     ExecutionStatus
	// Since/Until bound the execution start time (inclusive).
	Since time.Time
	Until time.Time
	// Limit caps the number of results; 0 means no cap.
	Limit int
}

// HistoryStore is a bounded in-memory log of terminal workflow executions.
// Appends beyond the maximum evict the oldest entry first. It is the only
// structure shared across concurrent executions, so all access is
// mutex-guarded.
type HistoryStore struct {
	mu      sync.RWMutex
	max     int
	entries []WorkflowExecution
	metrics *metrics.Collector
}

// DefaultMaxHistoryEntries bounds the history store when no limit is given.
const DefaultMaxHistoryEntries = 100

// NewHistoryStore creates a history store holding at most max entries.
// Non-positive max falls back to DefaultMaxHistoryEntries.
func NewHistoryStore(max int, collector *metrics.Collector) *HistoryStore {
	if max <= 0 {
		max = DefaultMaxHistoryEntries
	}
	return &HistoryStore{
		max:     max,
		entries: make([]WorkflowExecution, 0, max),
		metrics: collector,
	}
}

// SetMetrics attaches a metrics collector. Safe for concurrent use.
func (s *HistoryStore) SetMetrics(collector *metrics.Collector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = collector
}

// Append records a terminal execution, evicting the oldest entry when full.
func (s *HistoryStore) Append(exec WorkflowExecution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= s.max {
		evict := len(s.entries) - s.max + 1
		s.entries = append(s.entries[:0], s.entries[evict:]...)
		for i := 0; i < evict; i++ {
			s.metrics.RecordHistoryEviction()
		}
	}
	s.entries = append(s.entries, exec)
}

// Get returns the recorded execution with the given ID.
func (s *HistoryStore) Get(executionID string) (WorkflowExecution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.entries {
		if s.entries[i].ID == executionID {
			return s.entries[i], true
		}
	}
	return WorkflowExecution{}, false
}

// List returns executions matching the filter, most recent first.
func (s *HistoryStore) List(filter HistoryFilter) []WorkflowExecution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []WorkflowExecution
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if filter.WorkflowID != "" && entry.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && entry.StartedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && entry.StartedAt.After(filter.Until) {
			continue
		}
		result = append(result, entry)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result
}

// Len returns the number of stored executions.
func (s *HistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
