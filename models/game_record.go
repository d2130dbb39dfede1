package models

import (
	"time"
)

// GameRecord is the per-player log row written when a match finishes.
// One row per player per match; the coordinator never reads these back,
// they exist for history and streak accounting.
type GameRecord struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	MatchID       uint      `json:"match_id" gorm:"not null;uniqueIndex:idx_match_user"`
	UserID        uint      `json:"user_id" gorm:"not null;index;uniqueIndex:idx_match_user"`
	OpponentID    uint      `json:"opponent_id" gorm:"not null"`
	Score         int       `json:"score" gorm:"not null"`
	OpponentScore int       `json:"opponent_score" gorm:"not null"`
	Won           bool      `json:"won" gorm:"not null"`
	Draw          bool      `json:"draw" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`
}

func (GameRecord) TableName() string {
	return "game_records"
}
