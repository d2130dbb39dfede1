package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"elementduel/models"
)

// ErrMatchUnavailable wraps backing-store failures during find/create.
// Callers retry explicitly; the coordinator never retries on its own.
var ErrMatchUnavailable = errors.New("match unavailable")

// ErrNotSignedIn is returned when an operation is attempted without a
// user id.
var ErrNotSignedIn = errors.New("user id required")

// GameResult is derived exactly once per match, at the moment the record
// becomes completed. WinnerID is nil on a draw.
type GameResult struct {
	MatchID      uint  `json:"match_id"`
	WinnerID     *uint `json:"winner_id"`
	IsDraw       bool  `json:"is_draw"`
	Player1ID    uint  `json:"player1_id"`
	Player2ID    *uint `json:"player2_id"`
	Player1Score int   `json:"player1_score"`
	Player2Score int   `json:"player2_score"`
}

// AnswerResult reports the outcome of one answer submission. Accepted is
// false when the submission was ignored because the match is not active.
type AnswerResult struct {
	Accepted bool `json:"accepted"`
	Correct  bool `json:"correct"`
}

// CoordinatorOptions carries the game tuning the coordinator needs.
type CoordinatorOptions struct {
	MatchDurationSeconds int
	DeckSize             int
	MaxErrors            int
	ClockSyncTicks       int
	ClockTickInterval    time.Duration
}

func DefaultCoordinatorOptions() CoordinatorOptions {
	return CoordinatorOptions{
		MatchDurationSeconds: 180,
		DeckSize:             10,
		MaxErrors:            3,
		ClockSyncTicks:       5,
		ClockTickInterval:    time.Second,
	}
}

// MatchCoordinator owns one player session's view of a match: the cached
// record, the local question deck, the countdown clock and the change
// feed subscription. Two coordinators (one per player) interact only
// through the store and its change feed; there is no direct peer link.
//
// All state is guarded by mu. Subscriber callbacks and channel/clock
// teardown always run with mu released to keep re-entrant callbacks and
// the synchronous unsubscribe from deadlocking.
type MatchCoordinator struct {
	store   MatchStore
	channel StateChannel
	opts    CoordinatorOptions

	mu              sync.Mutex
	current         *models.Match
	deck            *QuestionDeck
	clock           *MatchClock
	unsubscribe     func()
	resultPublished bool

	nextSubID  int
	stateSubs  map[int]func(models.Match)
	resultSubs map[int]func(GameResult)
}

func NewMatchCoordinator(store MatchStore, channel StateChannel, opts CoordinatorOptions) *MatchCoordinator {
	return &MatchCoordinator{
		store:      store,
		channel:    channel,
		opts:       opts,
		stateSubs:  make(map[int]func(models.Match)),
		resultSubs: make(map[int]func(GameResult)),
	}
}

// FindGame joins the oldest waiting match created by another player, or
// creates a new waiting one. Joining flips the record to active and
// starts the clock; for a created match the clock starts only once the
// change feed shows the second player joining.
func (c *MatchCoordinator) FindGame(userID uint) (*models.Match, error) {
	if userID == 0 {
		return nil, ErrNotSignedIn
	}

	c.mu.Lock()
	c.current = nil
	c.deck = nil
	post := c.teardownLocked()
	c.mu.Unlock()
	runAll(post)

	waiting, err := c.store.FindOneWaiting(userID)
	if err != nil {
		log.Printf("Failed to query waiting matches: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrMatchUnavailable, err)
	}

	if waiting != nil {
		expected := models.MatchWaiting
		joined, err := c.store.UpdateWhere(waiting.ID, MatchCond{ExpectedStatus: &expected}, map[string]interface{}{
			"player2_id": userID,
			"status":     models.MatchActive,
		})
		if err == nil {
			return joined, c.adopt(joined, true)
		}
		if !errors.Is(err, ErrMatchNotFound) {
			log.Printf("Failed to join match %d: %v", waiting.ID, err)
			return nil, fmt.Errorf("%w: %v", ErrMatchUnavailable, err)
		}
		// Someone else took the seat between the read and the update;
		// fall through and open a fresh waiting match.
	}

	created, err := c.store.Insert(&models.Match{
		Player1ID:            userID,
		TimeRemainingSeconds: c.opts.MatchDurationSeconds,
		Status:               models.MatchWaiting,
		IsActive:             true,
	})
	if err != nil {
		log.Printf("Failed to create match for user %d: %v", userID, err)
		return nil, fmt.Errorf("%w: %v", ErrMatchUnavailable, err)
	}

	return created, c.adopt(created, false)
}

// adopt caches a freshly joined/created match, builds its deck, opens the
// change feed subscription and, when the match is already active, starts
// the clock.
func (c *MatchCoordinator) adopt(match *models.Match, startClock bool) error {
	unsubscribe, err := c.channel.Subscribe(match.ID, c.handleRemoteChange)
	if err != nil {
		log.Printf("Failed to subscribe to match %d: %v", match.ID, err)
		return fmt.Errorf("%w: %v", ErrMatchUnavailable, err)
	}

	c.mu.Lock()
	snapshot := *match
	c.current = &snapshot
	c.deck = BuildDeck(c.opts.DeckSize)
	c.unsubscribe = unsubscribe
	c.resultPublished = false
	if startClock {
		c.startClockLocked(snapshot.TimeRemainingSeconds)
	}
	state, subs := c.stateSnapshotLocked()
	c.mu.Unlock()

	notifyState(subs, state)
	return nil
}

// AnswerQuestion validates the submitted symbol against the local deck at
// the shared cursor. Correct answers score one point; a third wrong
// answer eliminates the caller and finalizes the match for the opponent.
// The cursor advance is a compare-and-swap on the previously read index:
// on conflict the record is re-read and the submission re-applied so a
// simultaneous opponent answer is not silently dropped.
func (c *MatchCoordinator) AnswerQuestion(symbol string, userID uint) (*AnswerResult, error) {
	c.mu.Lock()

	for attempt := 0; attempt < 3; attempt++ {
		if c.current == nil || c.current.Status != models.MatchActive || c.deck == nil {
			c.mu.Unlock()
			return &AnswerResult{Accepted: false}, nil
		}

		record := c.current
		idx := record.CurrentQuestionIndex % c.deck.Size()
		question, err := c.deck.At(idx)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}

		correct := strings.EqualFold(symbol, question.Answer)
		isPlayer1 := userID == record.Player1ID

		if !correct {
			newErrors := record.Player2Errors + 1
			column := "player2_errors"
			winner := record.Player1ID
			if isPlayer1 {
				newErrors = record.Player1Errors + 1
				column = "player1_errors"
				winner = 0
				if record.Player2ID != nil {
					winner = *record.Player2ID
				}
			}

			if newErrors >= c.opts.MaxErrors {
				// Elimination short-circuits the cursor advance.
				var winnerID *uint
				if winner != 0 {
					winnerID = &winner
				}
				post, err := c.finalizeLocked(winnerID, map[string]interface{}{column: newErrors})
				c.mu.Unlock()
				runAll(post)
				if err != nil {
					return nil, err
				}
				return &AnswerResult{Accepted: true, Correct: false}, nil
			}

			updated, err := c.applyPatchLocked(record, map[string]interface{}{
				column:                   newErrors,
				"current_question_index": (idx + 1) % c.deck.Size(),
			}, idx)
			if err == errRetryAnswer {
				continue
			}
			if err != nil {
				c.mu.Unlock()
				return nil, err
			}
			state, subs := c.adoptUpdateLocked(updated)
			c.mu.Unlock()
			notifyState(subs, state)
			return &AnswerResult{Accepted: true, Correct: false}, nil
		}

		column := "player2_score"
		newScore := record.Player2Score + 1
		if isPlayer1 {
			column = "player1_score"
			newScore = record.Player1Score + 1
		}

		updated, err := c.applyPatchLocked(record, map[string]interface{}{
			column:                   newScore,
			"current_question_index": (idx + 1) % c.deck.Size(),
		}, idx)
		if err == errRetryAnswer {
			continue
		}
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		state, subs := c.adoptUpdateLocked(updated)
		c.mu.Unlock()
		notifyState(subs, state)
		return &AnswerResult{Accepted: true, Correct: true}, nil
	}

	c.mu.Unlock()
	log.Printf("Answer submission gave up after repeated cursor conflicts")
	return nil, fmt.Errorf("%w: cursor contention", ErrMatchUnavailable)
}

// errRetryAnswer is an internal signal: the conditional update lost the
// cursor race and the loop should re-apply against the fresh record.
var errRetryAnswer = errors.New("retry answer")

// applyPatchLocked issues the conditional update for an answer, expecting
// the match to still be active at the index the caller read. On conflict
// it refreshes the cache and reports errRetryAnswer. Called with mu held.
func (c *MatchCoordinator) applyPatchLocked(record *models.Match, patch map[string]interface{}, expectedIndex int) (*models.Match, error) {
	expectedStatus := models.MatchActive
	updated, err := c.store.UpdateWhere(record.ID, MatchCond{
		ExpectedStatus:        &expectedStatus,
		ExpectedQuestionIndex: &expectedIndex,
	}, patch)
	if err == nil {
		return updated, nil
	}

	if errors.Is(err, ErrMatchNotFound) {
		fresh, gerr := c.store.Get(record.ID)
		if gerr != nil {
			log.Printf("Failed to re-read match %d after conflict: %v", record.ID, gerr)
			return nil, fmt.Errorf("%w: %v", ErrMatchUnavailable, gerr)
		}
		if c.current != nil && c.current.ID == fresh.ID {
			snapshot := *fresh
			c.current = &snapshot
		}
		return nil, errRetryAnswer
	}

	log.Printf("Failed to submit answer for match %d: %v", record.ID, err)
	return nil, fmt.Errorf("%w: %v", ErrMatchUnavailable, err)
}

// LeaveGame ends the local session's participation. A waiting match is
// deleted outright; leaving an active match forfeits it to the opponent;
// a completed match is a no-op. The channel and clock are torn down on
// every branch.
func (c *MatchCoordinator) LeaveGame(userID uint) error {
	c.mu.Lock()

	var opErr error
	var post []func()

	if c.current != nil {
		switch c.current.Status {
		case models.MatchWaiting:
			if err := c.store.Delete(c.current.ID); err != nil && !errors.Is(err, ErrMatchNotFound) {
				log.Printf("Failed to delete waiting match %d: %v", c.current.ID, err)
				opErr = fmt.Errorf("%w: %v", ErrMatchUnavailable, err)
			}
		case models.MatchActive:
			winner := c.current.OpponentOf(userID)
			var fpost []func()
			fpost, opErr = c.finalizeLocked(winner, nil)
			post = append(post, fpost...)
		case models.MatchCompleted:
			// Already terminal; nothing to resolve.
		}
	}

	c.current = nil
	c.deck = nil
	post = append(post, c.teardownLocked()...)
	c.mu.Unlock()

	runAll(post)
	return opErr
}

// finalizeLocked moves the record to completed at most once and publishes
// the GameResult exactly once. extraPatch fields (such as the eliminating
// error increment) ride on the same store write. Called with mu held; the
// returned funcs must run after mu is released.
func (c *MatchCoordinator) finalizeLocked(winnerID *uint, extraPatch map[string]interface{}) ([]func(), error) {
	if c.current == nil || c.resultPublished {
		return nil, nil
	}
	if c.current.Status == models.MatchCompleted {
		return nil, nil
	}

	patch := map[string]interface{}{
		"status":    models.MatchCompleted,
		"is_active": false,
	}
	for k, v := range extraPatch {
		patch[k] = v
	}

	final := *c.current
	updated, err := c.store.UpdateWhere(c.current.ID, MatchCond{}, patch)
	if err != nil {
		if !errors.Is(err, ErrMatchNotFound) {
			// The next authoritative delivery is the recovery path; the
			// local cache still flips to completed so no further
			// mutations are accepted.
			log.Printf("Failed to finalize match %d: %v", c.current.ID, err)
		}
		final.Status = models.MatchCompleted
		final.IsActive = false
		for _, apply := range []struct {
			key string
			dst *int
		}{
			{"player1_errors", &final.Player1Errors},
			{"player2_errors", &final.Player2Errors},
		} {
			if v, ok := extraPatch[apply.key].(int); ok {
				*apply.dst = v
			}
		}
	} else {
		final = *updated
	}

	c.current = &final
	c.resultPublished = true

	result := GameResult{
		MatchID:      final.ID,
		WinnerID:     winnerID,
		IsDraw:       winnerID == nil,
		Player1ID:    final.Player1ID,
		Player2ID:    final.Player2ID,
		Player1Score: final.Player1Score,
		Player2Score: final.Player2Score,
	}

	state, stateSubs := c.stateSnapshotLocked()
	resultSubs := make([]func(GameResult), 0, len(c.resultSubs))
	for _, cb := range c.resultSubs {
		resultSubs = append(resultSubs, cb)
	}

	clock := c.clock
	c.clock = nil

	post := []func(){func() {
		if clock != nil {
			clock.Stop()
		}
		notifyState(stateSubs, state)
		for _, cb := range resultSubs {
			cb(result)
		}
	}}
	return post, nil
}

// handleRemoteChange is the change-feed entry point. The cached record is
// replaced wholesale (field-level merging is the store's job). A remote
// completed record that no local finalize produced is turned into a
// GameResult here, so the player who did not cause the terminal
// transition still observes it.
func (c *MatchCoordinator) handleRemoteChange(change MatchChange) {
	c.mu.Lock()

	if c.current == nil || change.MatchID != c.current.ID {
		// Delivery for a match this session already abandoned.
		c.mu.Unlock()
		return
	}

	if change.Kind == ChangeDelete {
		c.current = nil
		c.deck = nil
		post := c.teardownLocked()
		c.mu.Unlock()
		runAll(post)
		return
	}

	if change.Match == nil {
		c.mu.Unlock()
		return
	}

	prevStatus := c.current.Status
	snapshot := *change.Match
	c.current = &snapshot

	if prevStatus == models.MatchWaiting && snapshot.Status == models.MatchActive {
		// The opponent joined; the creator's clock starts now.
		c.startClockLocked(snapshot.TimeRemainingSeconds)
	}

	state, stateSubs := c.stateSnapshotLocked()

	var post []func()
	if snapshot.Status == models.MatchCompleted && !c.resultPublished {
		c.resultPublished = true
		result := c.deriveResultLocked(&snapshot)

		resultSubs := make([]func(GameResult), 0, len(c.resultSubs))
		for _, cb := range c.resultSubs {
			resultSubs = append(resultSubs, cb)
		}
		clock := c.clock
		c.clock = nil
		post = append(post, func() {
			if clock != nil {
				clock.Stop()
			}
			for _, cb := range resultSubs {
				cb(result)
			}
		})
	} else if snapshot.Status == models.MatchCompleted && c.clock != nil {
		clock := c.clock
		c.clock = nil
		post = append(post, clock.Stop)
	}

	c.mu.Unlock()

	notifyState(stateSubs, state)
	runAll(post)
}

// deriveResultLocked computes the winner from record fields alone: a side
// at the error cap loses regardless of score, otherwise the higher score
// wins and equal scores draw.
func (c *MatchCoordinator) deriveResultLocked(m *models.Match) GameResult {
	var winnerID *uint
	switch {
	case m.Player2Errors >= c.opts.MaxErrors:
		p1 := m.Player1ID
		winnerID = &p1
	case m.Player1Errors >= c.opts.MaxErrors:
		winnerID = m.Player2ID
	case m.Player1Score > m.Player2Score:
		p1 := m.Player1ID
		winnerID = &p1
	case m.Player2Score > m.Player1Score:
		winnerID = m.Player2ID
	}

	return GameResult{
		MatchID:      m.ID,
		WinnerID:     winnerID,
		IsDraw:       winnerID == nil,
		Player1ID:    m.Player1ID,
		Player2ID:    m.Player2ID,
		Player1Score: m.Player1Score,
		Player2Score: m.Player2Score,
	}
}

// startClockLocked replaces any running clock with a fresh countdown.
// Called with mu held.
func (c *MatchCoordinator) startClockLocked(seconds int) {
	if c.clock != nil {
		c.clock.Stop()
	}

	matchID := c.current.ID
	c.clock = StartMatchClock(seconds, c.opts.ClockTickInterval, c.opts.ClockSyncTicks,
		func(remaining int) { c.persistRemaining(matchID, remaining) },
		func() { c.handleTimeout(matchID) },
	)
}

// persistRemaining pushes the local countdown value to the store. The
// local clock is the projection of record time while the match is active;
// remote ticks of the same field never re-sync it.
func (c *MatchCoordinator) persistRemaining(matchID uint, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.ID != matchID || c.current.Status != models.MatchActive {
		return
	}

	expected := models.MatchActive
	updated, err := c.store.UpdateWhere(matchID, MatchCond{ExpectedStatus: &expected}, map[string]interface{}{
		"time_remaining_seconds": remaining,
	})
	if err != nil {
		if !errors.Is(err, ErrMatchNotFound) {
			log.Printf("Failed to sync countdown for match %d: %v", matchID, err)
		}
		return
	}

	if c.current != nil && c.current.ID == updated.ID && c.current.Status == models.MatchActive {
		c.current.TimeRemainingSeconds = updated.TimeRemainingSeconds
	}
}

// handleTimeout resolves a match whose countdown reached zero: higher
// score wins, equal scores draw.
func (c *MatchCoordinator) handleTimeout(matchID uint) {
	c.mu.Lock()

	if c.current == nil || c.current.ID != matchID || c.current.Status != models.MatchActive {
		c.mu.Unlock()
		return
	}

	var winnerID *uint
	switch {
	case c.current.Player1Score > c.current.Player2Score:
		p1 := c.current.Player1ID
		winnerID = &p1
	case c.current.Player2Score > c.current.Player1Score:
		winnerID = c.current.Player2ID
	}

	post, err := c.finalizeLocked(winnerID, map[string]interface{}{
		"time_remaining_seconds": 0,
	})
	c.mu.Unlock()
	runAll(post)

	if err != nil {
		log.Printf("Failed to finalize timed-out match %d: %v", matchID, err)
	}
}

// GetCurrentQuestion returns the local deck's question at the shared
// cursor, or nil when no match is active.
func (c *MatchCoordinator) GetCurrentQuestion() *Question {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.Status != models.MatchActive || c.deck == nil {
		return nil
	}

	question, err := c.deck.At(c.current.CurrentQuestionIndex % c.deck.Size())
	if err != nil {
		return nil
	}
	return question
}

// CurrentMatch returns a copy of the cached record, or nil when idle.
func (c *MatchCoordinator) CurrentMatch() *models.Match {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}
	snapshot := *c.current
	return &snapshot
}

// SubscribeToState registers a callback for every cached-record change.
// The same logical state may be delivered more than once; consumers must
// apply updates idempotently.
func (c *MatchCoordinator) SubscribeToState(cb func(models.Match)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	c.stateSubs[id] = cb

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.stateSubs, id)
	}
}

// SubscribeToResult registers a callback invoked exactly once per match,
// at finalization.
func (c *MatchCoordinator) SubscribeToResult(cb func(GameResult)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	c.resultSubs[id] = cb

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.resultSubs, id)
	}
}

// Cleanup tears down the clock and the channel subscription
// unconditionally. Safe to call when idle.
func (c *MatchCoordinator) Cleanup() {
	c.mu.Lock()
	c.current = nil
	c.deck = nil
	post := c.teardownLocked()
	c.mu.Unlock()
	runAll(post)
}

// teardownLocked detaches the clock and subscription and returns the
// funcs that actually stop them; they must run with mu released because
// unsubscribe waits for the delivery goroutine, which may be blocked on
// mu.
func (c *MatchCoordinator) teardownLocked() []func() {
	clock := c.clock
	unsubscribe := c.unsubscribe
	c.clock = nil
	c.unsubscribe = nil

	var post []func()
	if clock != nil {
		post = append(post, clock.Stop)
	}
	if unsubscribe != nil {
		post = append(post, unsubscribe)
	}
	return post
}

// adoptUpdateLocked replaces the cache with a just-written record and
// snapshots the state subscribers. Called with mu held.
func (c *MatchCoordinator) adoptUpdateLocked(updated *models.Match) (models.Match, []func(models.Match)) {
	snapshot := *updated
	c.current = &snapshot
	return c.stateSnapshotLocked()
}

func (c *MatchCoordinator) stateSnapshotLocked() (models.Match, []func(models.Match)) {
	var state models.Match
	if c.current != nil {
		state = *c.current
	}
	subs := make([]func(models.Match), 0, len(c.stateSubs))
	for _, cb := range c.stateSubs {
		subs = append(subs, cb)
	}
	return state, subs
}

func notifyState(subs []func(models.Match), state models.Match) {
	if state.ID == 0 {
		return
	}
	for _, cb := range subs {
		cb(state)
	}
}

func runAll(funcs []func()) {
	for _, f := range funcs {
		f()
	}
}
