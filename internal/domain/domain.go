package domain

import "time"

// Difficulty is the learner-declared difficulty tag on a card. It is a
// display hint and never feeds back into the numeric scheduling fields.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Mode selects how a study session builds its working set.
type Mode string

const (
	// Learn walks every card in the deck in store order.
	Learn Mode = "learn"
	// Test shuffles the deck and caps the working set.
	Test Mode = "test"
	// Review selects due cards tagged hard.
	Review Mode = "review"
)

// Card is a question-answer pair with SM-2 scheduling state.
// A card with no LastReview is new and always due.
type Card struct {
	ID          string     `json:"id"`
	DeckID      string     `json:"deckId"`
	Question    string     `json:"question"`
	Answer      string     `json:"answer"`
	Difficulty  Difficulty `json:"difficulty"`
	Created     time.Time  `json:"created"`
	LastReview  *time.Time `json:"lastReview,omitempty"`
	NextReview  *time.Time `json:"nextReview,omitempty"`
	Interval    int        `json:"interval"`   // whole days, >= 1
	EaseFactor  float64    `json:"easeFactor"` // >= 1.3
	Repetitions int        `json:"repetitions"`
	Fingerprint string     `json:"fingerprint,omitempty"` // content hash for ingest dedupe
}

// Deck is a named collection of cards. CardCount is denormalized and
// maintained by the store on every card insert and delete.
type Deck struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Subject      string     `json:"subject"`
	Created      time.Time  `json:"created"`
	CardCount    int        `json:"cardCount"`
	LastStudied  *time.Time `json:"lastStudied,omitempty"`
	TotalReviews int        `json:"totalReviews"`
}

// UserStats is the single process-wide aggregate record.
type UserStats struct {
	TotalCards     int        `json:"totalCards"`
	TotalDecks     int        `json:"totalDecks"`
	TotalReviews   int        `json:"totalReviews"`
	CorrectReviews int        `json:"correctReviews"`
	Streak         int        `json:"streak"`
	LastReview     *time.Time `json:"lastReview,omitempty"`
}

// SnapshotVersion tags the snapshot schema so future format changes can
// migrate deterministically.
const SnapshotVersion = 1

// Snapshot is the wire contract for export/import and remote sync.
// Collections left nil on import are kept untouched.
type Snapshot struct {
	Version    int        `json:"version"`
	Decks      []Deck     `json:"decks"`
	Flashcards []Card     `json:"flashcards"`
	Stats      *UserStats `json:"stats,omitempty"`
	ExportedAt int64      `json:"exportedAt"` // epoch milliseconds
}
