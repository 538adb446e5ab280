package model

import (
	"time"
)

// Node is the persisted form of a ProxyRecord.
type Node struct {
	ID       uint   `gorm:"primaryKey"`
	DedupKey string `gorm:"uniqueIndex"`
	Raw      string
	Link     string
	Source   string

	Protocol    string `gorm:"index"`
	Host        string
	Port        int
	Country     string `gorm:"index"`
	CountryName string
	Remark      string

	FirstSeen time.Time
	LastSeen  time.Time `gorm:"index"`

	// Full-test history
	LatencyEMA    float64
	SampleCount   int
	FailureStreak int
	LastTested    time.Time
}

// Ranking is one row of the most recent ranked output.
type Ranking struct {
	ID        uint `gorm:"primaryKey"`
	NodeID    uint `gorm:"index"`
	Node      Node
	Position  int
	Phase     string
	LatencyMs int32
	RankedAt  time.Time
}
