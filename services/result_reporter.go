package services

import (
	"log"

	"elementduel/models"

	"gorm.io/gorm"
)

// ResultReporter persists terminal match outcomes. The coordinator core
// only emits GameResults; this reporter owns the historical game log and
// the streak counters.
type ResultReporter struct {
	db *gorm.DB
}

func NewResultReporter(db *gorm.DB) *ResultReporter {
	return &ResultReporter{db: db}
}

// Report writes one GameRecord per player and updates streaks. Failures
// are logged, never surfaced: the match outcome itself is already
// authoritative in the match row.
func (r *ResultReporter) Report(result GameResult) {
	if result.Player2ID == nil {
		// A match without a second player never finished; nothing to log.
		return
	}

	sides := []struct {
		userID        uint
		opponentID    uint
		score         int
		opponentScore int
	}{
		{result.Player1ID, *result.Player2ID, result.Player1Score, result.Player2Score},
		{*result.Player2ID, result.Player1ID, result.Player2Score, result.Player1Score},
	}

	for _, side := range sides {
		// Both players' coordinators report the same match; the first
		// write wins and the duplicate is skipped.
		var existing models.GameRecord
		if err := r.db.Where("match_id = ? AND user_id = ?", result.MatchID, side.userID).
			First(&existing).Error; err == nil {
			continue
		}

		won := result.WinnerID != nil && *result.WinnerID == side.userID
		record := models.GameRecord{
			MatchID:       result.MatchID,
			UserID:        side.userID,
			OpponentID:    side.opponentID,
			Score:         side.score,
			OpponentScore: side.opponentScore,
			Won:           won,
			Draw:          result.IsDraw,
		}

		if err := r.db.Create(&record).Error; err != nil {
			log.Printf("Failed to log game record for user %d match %d: %v", side.userID, result.MatchID, err)
			continue
		}

		r.updateStreak(side.userID, won)
	}
}

func (r *ResultReporter) updateStreak(userID uint, won bool) {
	if !won {
		if err := r.db.Model(&models.User{}).Where("id = ?", userID).
			Update("win_streak", 0).Error; err != nil {
			log.Printf("Failed to reset streak for user %d: %v", userID, err)
		}
		return
	}

	err := r.db.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"win_streak":  gorm.Expr("win_streak + 1"),
			"best_streak": gorm.Expr("GREATEST(best_streak, win_streak + 1)"),
		}).Error
	if err != nil {
		log.Printf("Failed to update streak for user %d: %v", userID, err)
	}
}

// History returns the user's finished matches, most recent first.
func (r *ResultReporter) History(userID uint, limit int) ([]models.GameRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var records []models.GameRecord
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
