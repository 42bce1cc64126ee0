package testutil

import (
	"sync"

	"github.com/nocturn-hq/concierge-widget/internal/view"
)

// RecordingSurface keeps every snapshot rendered to it.
type RecordingSurface struct {
	mu        sync.Mutex
	snapshots []view.Snapshot
}

var _ view.Surface = (*RecordingSurface)(nil)

func (s *RecordingSurface) Render(snap view.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
}

func (s *RecordingSurface) Snapshots() []view.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]view.Snapshot(nil), s.snapshots...)
}

// Last returns the most recent snapshot, or the zero value.
func (s *RecordingSurface) Last() view.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return view.Snapshot{}
	}
	return s.snapshots[len(s.snapshots)-1]
}

func (s *RecordingSurface) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}
