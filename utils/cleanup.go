package utils

import (
	"context"
	"errors"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/buconnects/server/models"
)

// ScheduleMediaReclaim marks the media stored under url for removal at the given time.
func ScheduleMediaReclaim(tx *gorm.DB, url string, at time.Time) error {
	return tx.Model(&models.MediaFile{}).Where("url = ?", url).Update("reclaim_at", at).Error
}

// ReclaimMedia deletes up to 100 files whose reclaim time has passed and drops their rows.
// It returns how many rows were removed.
func ReclaimMedia(ctx context.Context, db *gorm.DB, now time.Time) (int, error) {
	var items []models.MediaFile
	if err := db.WithContext(ctx).
		Where("reclaim_at IS NOT NULL AND reclaim_at <= ?", now).
		Limit(100).Find(&items).Error; err != nil {
		return 0, err
	}
	removed := 0
	for _, it := range items {
		if it.FilePath != "" {
			if err := os.Remove(it.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				Sugar.Warnw("media reclaim remove failed", "path", it.FilePath, "err", err)
				continue
			}
		}
		if err := db.WithContext(ctx).Delete(&models.MediaFile{}, it.ID).Error; err != nil {
			Sugar.Warnw("media reclaim delete row failed", "id", it.ID, "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// StartMediaReclaimer runs ReclaimMedia every interval until ctx is done.
func StartMediaReclaimer(ctx context.Context, db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n, err := ReclaimMedia(ctx, db, now)
				if err != nil {
					Sugar.Errorf("media reclaim query failed: %v", err)
					continue
				}
				if n > 0 {
					Sugar.Infof("media reclaim removed %d files", n)
				}
			}
		}
	}()
}
