// Package terminal renders the widget panel in a terminal with bubbletea.
package terminal

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nocturn-hq/concierge-widget/internal/view"
)

type snapshotMsg view.Snapshot

// Surface bridges view snapshots into the bubbletea loop. Render never
// blocks; the program always picks up the newest snapshot.
type Surface struct {
	mu     sync.Mutex
	latest view.Snapshot
	notify chan struct{}
}

var _ view.Surface = (*Surface)(nil)

func NewSurface() *Surface {
	return &Surface{notify: make(chan struct{}, 1)}
}

func (s *Surface) Render(snap view.Snapshot) {
	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Surface) Latest() view.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *Surface) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		<-s.notify
		return snapshotMsg(s.Latest())
	}
}
