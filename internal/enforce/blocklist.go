package enforce

import (
	"sync"

	"github.com/jsai2001/GetYourLifeBack/internal/models"
)

// blocklist tracks which apps are inside their post-reminder cooldown, keyed
// by the epoch-ms instant at which each unblocks.
type blocklist struct {
	mu    sync.Mutex
	until map[models.AppID]int64
}

func newBlocklist() *blocklist {
	return &blocklist{until: make(map[models.AppID]int64)}
}

// block puts an app into cooldown until the given instant.
func (b *blocklist) block(app models.AppID, untilMs int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.until[app] = untilMs
}

// isBlocked reports whether the app is still inside its cooldown at now,
// dropping the entry once it has lapsed.
func (b *blocklist) isBlocked(app models.AppID, nowMs int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.until[app]
	if !ok {
		return false
	}
	if nowMs >= until {
		delete(b.until, app)
		return false
	}
	return true
}

// prune drops all lapsed entries.
func (b *blocklist) prune(nowMs int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for app, until := range b.until {
		if nowMs >= until {
			delete(b.until, app)
		}
	}
}

// clear drops everything; called on scheduler stop so no cooldown survives
// the session it belongs to.
func (b *blocklist) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.until = make(map[models.AppID]int64)
}

func (b *blocklist) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.until)
}
