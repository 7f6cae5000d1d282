package cleanup

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SessionStore lists and removes idle sessions.
type SessionStore interface {
	Expired(maxAge time.Duration) []string
	Remove(id string) error
}

// Scheduler removes stale temp files and expires idle sessions.
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	sessions SessionStore
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a new cleanup scheduler. sessions may be nil, in
// which case only temp files are cleaned.
func NewScheduler(tempDir string, interval, maxAge time.Duration, sessions SessionStore) *Scheduler {
	return &Scheduler{
		tempDir:  tempDir,
		interval: interval,
		maxAge:   maxAge,
		sessions: sessions,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval.
func (s *Scheduler) Start() {
	log.Println("Running initial cleanup...")
	s.RunOnce()

	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	log.Printf("Cleanup scheduler started (interval: %s, max age: %s)", s.interval, s.maxAge)
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		log.Println("Cleanup scheduler stopped")
	})
}

// RunOnce performs a single cleanup pass and returns how many temp files
// and sessions were removed.
func (s *Scheduler) RunOnce() (files, sessions int) {
	return s.cleanOldFiles(), s.expireSessions()
}

func (s *Scheduler) expireSessions() int {
	if s.sessions == nil {
		return 0
	}
	removed := 0
	for _, id := range s.sessions.Expired(s.maxAge) {
		if err := s.sessions.Remove(id); err != nil {
			log.Printf("Failed to expire session %s: %v", id, err)
			continue
		}
		removed++
		log.Printf("Expired idle session %s", id)
	}
	return removed
}

// cleanOldFiles removes files older than maxAge from the temp directory
func (s *Scheduler) cleanOldFiles() int {
	now := s.now()

	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age > s.maxAge {
			size := info.Size()
			if err := os.Remove(path); err != nil {
				log.Printf("Failed to delete old file %s: %v", path, err)
			} else {
				deletedCount++
				deletedSize += size
				log.Printf("Deleted old temp file: %s (age: %s, size: %dKB)",
					filepath.Base(path), age.Round(time.Minute), size/1024)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("Error during cleanup: %v", err)
	}

	if deletedCount > 0 {
		log.Printf("Cleanup complete: %d files deleted, %.2fMB freed",
			deletedCount, float64(deletedSize)/(1024*1024))
	}
	return deletedCount
}

// EnsureTempDirExists creates the temp directory if it doesn't exist
func EnsureTempDirExists(tempDir string) error {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return err
	}
	log.Printf("Temp directory ready: %s", tempDir)
	return nil
}
