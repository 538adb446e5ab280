package engine

import (
	"time"

	"gorm.io/gorm"

	"fastnodes/internal/logger"
	"fastnodes/internal/model"
)

// HistoryAlpha determines how much weight the LATEST test has (0.0 - 1.0).
const HistoryAlpha = 0.3

type HistoryEngine struct {
	db *gorm.DB
}

func NewHistoryEngine(db *gorm.DB) *HistoryEngine {
	return &HistoryEngine{db: db}
}

// Record folds one run's tunnel results into the stored nodes: successes
// update the latency EMA and clear the failure streak, failures extend it.
func (h *HistoryEngine) Record(rk *Ranking, now time.Time) error {
	return h.db.Transaction(func(tx *gorm.DB) error {
		for _, res := range rk.Full {
			if err := updateNode(tx, res.Record.DedupKey, func(n *model.Node) {
				ms := float64(res.LatencyMs)
				if n.SampleCount == 0 {
					n.LatencyEMA = ms // First score is just the result
				} else {
					n.LatencyEMA = n.LatencyEMA*(1-HistoryAlpha) + ms*HistoryAlpha
				}
				n.SampleCount++
				n.FailureStreak = 0
				n.LastTested = now
			}); err != nil {
				return err
			}
		}
		for _, r := range rk.FullFailed {
			if err := updateNode(tx, r.DedupKey, func(n *model.Node) {
				n.FailureStreak++
				n.LastTested = now
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func updateNode(tx *gorm.DB, key string, mutate func(*model.Node)) error {
	var n model.Node
	if err := tx.Where("dedup_key = ?", key).Limit(1).Find(&n).Error; err != nil {
		return err
	}
	if n.ID == 0 {
		logger.Log.Debugf("history: node %s not stored, skipping", key)
		return nil
	}
	mutate(&n)
	return tx.Model(&n).Select("latency_ema", "sample_count", "failure_streak", "last_tested").Updates(&n).Error
}
