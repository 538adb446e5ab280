package engine

import (
	"time"

	"gorm.io/gorm"

	"fastnodes/internal/logger"
	"fastnodes/internal/model"
)

// PruneDatabase removes nodes not seen since now-maxAge, along with their
// ranking rows. It returns the number of nodes removed.
func PruneDatabase(db *gorm.DB, maxAge time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-maxAge)

	var ids []uint
	if err := db.Model(&model.Node{}).Where("last_seen < ?", cutoff).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	logger.Log.Infof("✂️  Pruning Database: removing %d nodes unseen since %s", len(ids), cutoff.Format(time.DateOnly))

	tx := db.Begin()
	// Clean up orphaned Ranking records
	if err := tx.Where("node_id IN ?", ids).Delete(&model.Ranking{}).Error; err != nil {
		tx.Rollback()
		return 0, err
	}
	res := tx.Delete(&model.Node{}, ids)
	if res.Error != nil {
		tx.Rollback()
		return 0, res.Error
	}
	return res.RowsAffected, tx.Commit().Error
}
