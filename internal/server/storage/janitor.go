package storage

import (
	"context"
	"log/slog"
	"time"
)

// UploadIndex lists the upload ids the database knows about.
type UploadIndex interface {
	ListUploadIDs(ctx context.Context) ([]string, error)
}

// Janitor periodically removes orphaned blobs: files on disk whose upload
// record no longer exists. Deletion intentionally removes the database row
// before the blob, so a crash in between leaves an orphan for this sweep
// to collect.
type Janitor struct {
	index    UploadIndex
	store    Store
	interval time.Duration
	done     chan struct{}
}

// NewJanitor creates a new storage janitor.
func NewJanitor(index UploadIndex, store Store, interval time.Duration) *Janitor {
	return &Janitor{
		index:    index,
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine.
func (j *Janitor) Start(ctx context.Context) {
	slog.Info("storage janitor started", "interval", j.interval)

	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		// Run once immediately on start
		j.sweep(ctx)

		for {
			select {
			case <-ticker.C:
				j.sweep(ctx)
			case <-ctx.Done():
				slog.Info("storage janitor stopping")
				close(j.done)
				return
			}
		}
	}()
}

// Wait blocks until the janitor has fully stopped.
func (j *Janitor) Wait() {
	<-j.done
}

func (j *Janitor) sweep(ctx context.Context) {
	known, err := j.index.ListUploadIDs(ctx)
	if err != nil {
		slog.Error("failed to list upload ids", "error", err)
		return
	}

	onDisk, err := j.store.List()
	if err != nil {
		slog.Error("failed to list stored blobs", "error", err)
		return
	}

	knownSet := make(map[string]bool, len(known))
	for _, id := range known {
		knownSet[id] = true
	}

	var removed, failed int
	for _, id := range onDisk {
		if knownSet[id] {
			continue
		}
		if err := j.store.Delete(id); err != nil {
			slog.Error("failed to delete orphaned blob", "upload_id", id, "error", err)
			failed++
			continue
		}
		removed++
		slog.Info("removed orphaned blob", "upload_id", id)
	}

	if removed > 0 || failed > 0 {
		slog.Info("janitor sweep complete", "removed", removed, "failed", failed)
	}
}
