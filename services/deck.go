package services

import (
	"errors"
	"math/rand"
)

// ErrDeckBounds is returned by QuestionDeck.At for an index outside the
// deck.
var ErrDeckBounds = errors.New("question index out of range")

// QuestionDeck is the fixed set of questions assigned to one match.
// Built once at match creation, never mutated afterwards. Two decks
// built from the same bank are independent random permutations.
type QuestionDeck struct {
	questions []Question
}

// BuildDeck samples count questions from the element bank without
// replacement, in random order. count is clamped to the bank size.
func BuildDeck(count int) *QuestionDeck {
	if count > len(elementBank) {
		count = len(elementBank)
	}

	indices := rand.Perm(len(elementBank))[:count]
	questions := make([]Question, count)
	for i, idx := range indices {
		questions[i] = questionFor(idx)
	}

	return &QuestionDeck{questions: questions}
}

// Size returns the number of questions in the deck.
func (d *QuestionDeck) Size() int {
	return len(d.questions)
}

// At resolves the question at the given ordinal index.
func (d *QuestionDeck) At(index int) (*Question, error) {
	if index < 0 || index >= len(d.questions) {
		return nil, ErrDeckBounds
	}
	q := d.questions[index]
	return &q, nil
}
