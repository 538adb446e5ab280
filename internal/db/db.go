package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"fastnodes/internal/model"
)

func Connect(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		// logger.Error hides "SLOW SQL" warnings (default is Warn)
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Node{}, &model.Ranking{})
}

// NodeFromRecord maps an accepted record onto its persisted form.
func NodeFromRecord(r *model.ProxyRecord, now time.Time) model.Node {
	return model.Node{
		DedupKey:    r.DedupKey,
		Raw:         r.RawLine,
		Link:        r.Link,
		Source:      r.Source,
		Protocol:    string(r.Protocol),
		Host:        r.Host,
		Port:        int(r.Port),
		Country:     r.CountryCode,
		CountryName: r.CountryName,
		Remark:      r.Remark,
		FirstSeen:   now,
		LastSeen:    now,
	}
}

// SaveRecords upserts records by dedup key. First-seen times survive; every
// other descriptive column is refreshed.
func SaveRecords(db *gorm.DB, records []*model.ProxyRecord, now time.Time) error {
	if len(records) == 0 {
		return nil
	}
	nodes := make([]model.Node, len(records))
	for i, r := range records {
		nodes[i] = NodeFromRecord(r, now)
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "dedup_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"raw", "link", "source", "protocol", "host", "port",
			"country", "country_name", "remark", "last_seen",
		}),
	}).CreateInBatches(nodes, 200).Error
}

// LoadNodes returns every stored node, optionally filtered by protocol.
func LoadNodes(db *gorm.DB, protocols ...string) ([]model.Node, error) {
	q := db.Order("id")
	if len(protocols) > 0 {
		for i := range protocols {
			protocols[i] = strings.ToLower(protocols[i])
		}
		q = q.Where("protocol IN ?", protocols)
	}
	var nodes []model.Node
	if err := q.Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	return nodes, nil
}

// RankEntry is one ranked position to persist.
type RankEntry struct {
	DedupKey  string
	Phase     string
	LatencyMs int32
}

// SaveRanking replaces the stored ranking. Entries whose node is missing are
// skipped.
func SaveRanking(db *gorm.DB, entries []RankEntry, now time.Time) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.Ranking{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		keys := make([]string, len(entries))
		for i, e := range entries {
			keys[i] = e.DedupKey
		}
		var nodes []model.Node
		if err := tx.Select("id", "dedup_key").Where("dedup_key IN ?", keys).Find(&nodes).Error; err != nil {
			return err
		}
		ids := make(map[string]uint, len(nodes))
		for _, n := range nodes {
			ids[n.DedupKey] = n.ID
		}

		rows := make([]model.Ranking, 0, len(entries))
		for _, e := range entries {
			id, ok := ids[e.DedupKey]
			if !ok {
				continue
			}
			rows = append(rows, model.Ranking{
				NodeID:    id,
				Position:  len(rows) + 1,
				Phase:     e.Phase,
				LatencyMs: e.LatencyMs,
				RankedAt:  now,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Omit("Node").CreateInBatches(rows, 200).Error
	})
}

// LoadRanking returns the stored ranking with nodes attached, by position.
func LoadRanking(db *gorm.DB) ([]model.Ranking, error) {
	var rows []model.Ranking
	if err := db.Preload("Node").Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load ranking: %w", err)
	}
	return rows, nil
}
