package models

import "time"

// LogRecord is one persisted pipeline entry. The table is bounded by
// the sink, which prunes the oldest rows past its limit.
type LogRecord struct {
	ID          uint      `gorm:"primaryKey"`
	Time        time.Time `gorm:"index"`
	Level       string    `gorm:"index"`
	Source      string    `gorm:"index"`
	Message     string
	Context     []byte
	Environment string
	Version     string
}
