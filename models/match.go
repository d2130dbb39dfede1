package models

import (
	"time"
)

// Match lifecycle states.
const (
	MatchWaiting   = "waiting"
	MatchActive    = "active"
	MatchCompleted = "completed"
)

// Match is the authoritative record of one 1v1 duel. Player1 creates the
// row; Player2ID is set exactly once when an opponent joins, which also
// flips the status to active. Once completed, no score/error/index
// mutation is accepted.
type Match struct {
	ID                   uint      `json:"id" gorm:"primaryKey"`
	Player1ID            uint      `json:"player1_id" gorm:"not null;index"`
	Player2ID            *uint     `json:"player2_id" gorm:"index"`
	Player1Score         int       `json:"player1_score" gorm:"not null;default:0"`
	Player2Score         int       `json:"player2_score" gorm:"not null;default:0"`
	Player1Errors        int       `json:"player1_errors" gorm:"not null;default:0"`
	Player2Errors        int       `json:"player2_errors" gorm:"not null;default:0"`
	CurrentQuestionIndex int       `json:"current_question_index" gorm:"not null;default:0"`
	TimeRemainingSeconds int       `json:"time_remaining_seconds" gorm:"not null"`
	Status               string    `json:"status" gorm:"not null;default:'waiting';index"`
	IsActive             bool      `json:"is_active" gorm:"not null;default:true;index"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (Match) TableName() string {
	return "matches"
}

// HasPlayer reports whether the given user is one of the two sides.
func (m *Match) HasPlayer(userID uint) bool {
	if m.Player1ID == userID {
		return true
	}
	return m.Player2ID != nil && *m.Player2ID == userID
}

// OpponentOf returns the other side's user id, or nil if the match has no
// second player yet or the user is not in the match.
func (m *Match) OpponentOf(userID uint) *uint {
	if m.Player1ID == userID {
		return m.Player2ID
	}
	if m.Player2ID != nil && *m.Player2ID == userID {
		p1 := m.Player1ID
		return &p1
	}
	return nil
}
