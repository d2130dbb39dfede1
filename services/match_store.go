package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"elementduel/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrMatchNotFound is returned when an update/delete targets a row that is
// no longer present or no longer satisfies the caller's condition.
var ErrMatchNotFound = errors.New("match not found")

// ChangeKind identifies the row-level operation carried by a MatchChange.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// MatchChange is the change-feed event published after every committed
// mutation of a match row. Match carries the new row payload for
// insert/update and is nil for delete.
type MatchChange struct {
	Kind    ChangeKind    `json:"kind"`
	MatchID uint          `json:"match_id"`
	Match   *models.Match `json:"match,omitempty"`
}

// MatchCond restricts a conditional update. Nil fields are not checked.
// ExpectedQuestionIndex implements the compare-and-swap guard on the
// shared question cursor: the update applies only if the row still holds
// the index the caller read.
type MatchCond struct {
	ExpectedStatus        *string
	ExpectedQuestionIndex *int
}

// MatchStore is the backing-store contract the coordinator consumes.
// Row mutations are visible to remote coordinators only through the
// change feed; callers re-derive intent from a fresh Get when a
// conditional update reports a conflict.
type MatchStore interface {
	Insert(match *models.Match) (*models.Match, error)
	Get(id uint) (*models.Match, error)
	UpdateWhere(id uint, cond MatchCond, patch map[string]interface{}) (*models.Match, error)
	FindOneWaiting(excludePlayerID uint) (*models.Match, error)
	Delete(id uint) error
}

// GormMatchStore persists match rows in Postgres and publishes every
// committed change to the per-match Redis channel.
type GormMatchStore struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewGormMatchStore(db *gorm.DB, redisClient *redis.Client) *GormMatchStore {
	return &GormMatchStore{db: db, redis: redisClient}
}

func matchChannelName(matchID uint) string {
	return fmt.Sprintf("match:%d", matchID)
}

func (s *GormMatchStore) Insert(match *models.Match) (*models.Match, error) {
	if err := s.db.Create(match).Error; err != nil {
		return nil, err
	}

	s.publish(MatchChange{Kind: ChangeInsert, MatchID: match.ID, Match: match})
	return match, nil
}

func (s *GormMatchStore) Get(id uint) (*models.Match, error) {
	var match models.Match
	if err := s.db.First(&match, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}

func (s *GormMatchStore) UpdateWhere(id uint, cond MatchCond, patch map[string]interface{}) (*models.Match, error) {
	query := s.db.Model(&models.Match{}).Where("id = ?", id)
	if cond.ExpectedStatus != nil {
		query = query.Where("status = ?", *cond.ExpectedStatus)
	}
	if cond.ExpectedQuestionIndex != nil {
		query = query.Where("current_question_index = ?", *cond.ExpectedQuestionIndex)
	}

	result := query.Updates(patch)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrMatchNotFound
	}

	match, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	s.publish(MatchChange{Kind: ChangeUpdate, MatchID: match.ID, Match: match})
	return match, nil
}

func (s *GormMatchStore) FindOneWaiting(excludePlayerID uint) (*models.Match, error) {
	var match models.Match
	err := s.db.Where("status = ? AND player1_id <> ?", models.MatchWaiting, excludePlayerID).
		Order("created_at ASC").
		First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &match, nil
}

func (s *GormMatchStore) Delete(id uint) error {
	result := s.db.Delete(&models.Match{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMatchNotFound
	}

	s.publish(MatchChange{Kind: ChangeDelete, MatchID: id})
	return nil
}

func (s *GormMatchStore) publish(change MatchChange) {
	data, err := json.Marshal(change)
	if err != nil {
		log.Printf("Failed to marshal match change for %d: %v", change.MatchID, err)
		return
	}

	if err := s.redis.Publish(context.Background(), matchChannelName(change.MatchID), data).Err(); err != nil {
		log.Printf("Failed to publish %s change for match %d: %v", change.Kind, change.MatchID, err)
	}
}
