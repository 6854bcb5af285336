// Package watcher hot-reloads the company limits file by polling it and
// comparing content hashes, so limit changes take effect without a
// restart.
package watcher

import (
	"context"
	"crypto/sha256"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/greetforge/greetforge/internal/config"
)

// defaultInterval is how often the limits file is polled.
const defaultInterval = 10 * time.Second

// Limits holds the live per-company limit table. The base table comes
// from the environment and config file and never changes; the limits
// file is overlaid on top of it, so a file reload can never drop an
// env-configured company. Reads are cheap and safe from any goroutine.
type Limits struct {
	path     string
	interval time.Duration
	base     map[string]int

	mu       sync.RWMutex
	limits   map[string]int
	lastHash [sha256.Size]byte
}

// NewLimits creates a Limits with the given base table, overlaying the
// limits file immediately when path names a readable file. path may be
// empty, in which case Start is a no-op and the table never changes.
func NewLimits(base map[string]int, path string) *Limits {
	baseCopy := make(map[string]int, len(base))
	for company, limit := range base {
		baseCopy[company] = limit
	}
	l := &Limits{path: path, interval: defaultInterval, base: baseCopy, limits: baseCopy}
	if path != "" {
		l.pollOnce()
	}
	return l
}

// Snapshot returns the current limit table. Callers must not mutate it.
func (l *Limits) Snapshot() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limits
}

// Start begins polling the limits file until the context ends.
func (l *Limits) Start(ctx context.Context) {
	if l.path == "" {
		return
	}
	go func() {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.pollOnce()
			}
		}
	}()
}

// pollOnce re-reads the limits file and, when the content hash changed,
// swaps in the base table overlaid with the file contents.
func (l *Limits) pollOnce() {
	raw, errRead := os.ReadFile(l.path)
	if errRead != nil {
		log.WithError(errRead).WithField("path", l.path).Debug("company limits file unreadable")
		return
	}
	hash := sha256.Sum256(raw)

	l.mu.RLock()
	unchanged := hash == l.lastHash
	l.mu.RUnlock()
	if unchanged {
		return
	}

	fromFile, errParse := config.ParseCompanyLimits(raw)
	if errParse != nil {
		log.WithError(errParse).WithField("path", l.path).Warn("company limits file invalid, keeping previous table")
		return
	}

	merged := make(map[string]int, len(l.base)+len(fromFile))
	for company, limit := range l.base {
		merged[company] = limit
	}
	for company, limit := range fromFile {
		merged[company] = limit
	}

	l.mu.Lock()
	l.limits = merged
	l.lastHash = hash
	l.mu.Unlock()
	log.WithField("companies", len(merged)).Info("company limits reloaded")
}
