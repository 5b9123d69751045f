package jobs

import (
	"context"
	"log"
	"time"

	"filevault/models"
	"filevault/repository"
	"filevault/storage"
)

// StaleUploadSweeper reclaims uploads that were interrupted and never
// resumed: the record, its partial blob, and its share of the owner's
// storage ledger all go together.
type StaleUploadSweeper struct {
	store    repository.Store
	blobs    storage.BlobStore
	ttl      time.Duration
	interval time.Duration
	logger   *log.Logger
}

func NewStaleUploadSweeper(store repository.Store, blobs storage.BlobStore, ttl, interval time.Duration) *StaleUploadSweeper {
	return &StaleUploadSweeper{
		store:    store,
		blobs:    blobs,
		ttl:      ttl,
		interval: interval,
		logger:   log.New(log.Writer(), "[STALE_UPLOADS] ", log.LstdFlags),
	}
}

// Start runs the sweep immediately and then on every tick until ctx is done.
func (s *StaleUploadSweeper) Start(ctx context.Context) {
	s.logger.Println("Starting stale upload sweeper...")

	s.runSweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("Stale upload sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *StaleUploadSweeper) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.ttl)
	files, err := s.store.Files().ListIncompleteBefore(sweepCtx, cutoff)
	if err != nil {
		s.logger.Printf("Error listing stale uploads: %v", err)
		return
	}
	if len(files) == 0 {
		return
	}

	var reclaimed int
	for i := range files {
		if err := s.reclaim(sweepCtx, &files[i]); err != nil {
			s.logger.Printf("Failed to reclaim stale upload %s: %v", files[i].URI, err)
			continue
		}
		reclaimed++
		s.logger.Printf("Reclaimed stale upload: %s (%s, %d of %d bytes)",
			files[i].Name, files[i].URI, files[i].SizeUploaded, files[i].Size)
	}
	s.logger.Printf("Sweep completed. Reclaimed %d of %d stale uploads", reclaimed, len(files))
}

func (s *StaleUploadSweeper) reclaim(ctx context.Context, file *models.FileRecord) error {
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Files().Delete(ctx, file.UserID, file.URI); err != nil {
			return err
		}
		if file.SizeUploaded > 0 {
			return s.store.Users().AdjustUsedStorage(ctx, file.UserID, -file.SizeUploaded)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, file.PathName); err != nil {
		s.logger.Printf("Failed to delete blob %s: %v", file.PathName, err)
	}
	return nil
}
