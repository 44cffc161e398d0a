package workflow

import (
	"context"

	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/stage"
)

// StatusSummary is a point-in-time view of the manager for status surfaces.
type StatusSummary struct {
	Running     bool
	State       PipelineState
	LastError   string
	LastItem    *queue.Item
	QueueStats  map[queue.Status]int
	StageHealth map[string]stage.Health
	ScratchPath string
}

// Status snapshots run state under the lock, then reads queue counts and
// probes each registered stage without holding it.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:     m.running,
		State:       m.state,
		LastItem:    cloneItem(m.lastItem),
		ScratchPath: m.tree.Path(),
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	registered := append([]pipelineStage(nil), m.stages...)
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats

	summary.StageHealth = make(map[string]stage.Health, len(registered))
	for _, ps := range registered {
		summary.StageHealth[ps.name] = ps.handler.HealthCheck(ctx)
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err
}

func (m *Manager) setLastItem(item *queue.Item) {
	snapshot := cloneItem(item)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastItem = snapshot
}

func cloneItem(item *queue.Item) *queue.Item {
	if item == nil {
		return nil
	}
	dup := *item
	return &dup
}
