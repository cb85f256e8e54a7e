package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/mnemo/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection. It is the
// single choke point for every mutation touching the denormalized deck
// counters, so the card_count invariant cannot drift across callers.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// newID builds a practically-unique record id from an epoch-millis prefix
// and a random suffix.
func newID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()[:8]
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// ListDecks returns all decks. Read failures are swallowed and reported as
// an empty result so a corrupt store reads as "no data yet".
func (db *DB) ListDecks() []domain.Deck {
	rows, err := db.conn.Query(`
		SELECT id, name, description, subject, created, card_count, last_studied, total_reviews
		FROM decks ORDER BY created
	`)
	if err != nil {
		slog.Warn("Failed to list decks, treating as empty", "error", err)
		return nil
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		var d domain.Deck
		var lastStudied sql.NullTime
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Subject, &d.Created, &d.CardCount, &lastStudied, &d.TotalReviews); err != nil {
			slog.Warn("Failed to scan deck row, skipping", "error", err)
			continue
		}
		d.LastStudied = timePtr(lastStudied)
		decks = append(decks, d)
	}
	return decks
}

// GetDeck retrieves a deck by id. Returns nil when the id is unknown or the
// row cannot be read.
func (db *DB) GetDeck(id string) *domain.Deck {
	var d domain.Deck
	var lastStudied sql.NullTime
	row := db.conn.QueryRow(`
		SELECT id, name, description, subject, created, card_count, last_studied, total_reviews
		FROM decks WHERE id = ?
	`, id)
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Subject, &d.Created, &d.CardCount, &lastStudied, &d.TotalReviews); err != nil {
		if err != sql.ErrNoRows {
			slog.Warn("Failed to read deck, treating as absent", "id", id, "error", err)
		}
		return nil
	}
	d.LastStudied = timePtr(lastStudied)
	return &d
}

// CreateDeck inserts a new deck with a fresh id and zeroed counters.
func (db *DB) CreateDeck(name, description, subject string) (domain.Deck, error) {
	now := time.Now()
	d := domain.Deck{
		ID:          newID(now),
		Name:        name,
		Description: description,
		Subject:     subject,
		Created:     now,
	}
	_, err := db.conn.Exec(`
		INSERT INTO decks (id, name, description, subject, created, card_count, total_reviews)
		VALUES (?, ?, ?, ?, ?, 0, 0)
	`, d.ID, d.Name, d.Description, d.Subject, d.Created)
	if err != nil {
		return domain.Deck{}, fmt.Errorf("failed to insert deck %q: %w", name, err)
	}
	return d, nil
}

// DeckPatch carries the mergeable deck fields; nil pointers leave the
// stored value unchanged.
type DeckPatch struct {
	Name        *string
	Description *string
	Subject     *string
}

// UpdateDeck merges the patch into the matching deck. An unknown id
// performs no mutation and returns nil.
func (db *DB) UpdateDeck(id string, patch DeckPatch) (*domain.Deck, error) {
	d := db.GetDeck(id)
	if d == nil {
		return nil, nil
	}
	if patch.Name != nil {
		d.Name = *patch.Name
	}
	if patch.Description != nil {
		d.Description = *patch.Description
	}
	if patch.Subject != nil {
		d.Subject = *patch.Subject
	}
	_, err := db.conn.Exec(`
		UPDATE decks SET name = ?, description = ?, subject = ? WHERE id = ?
	`, d.Name, d.Description, d.Subject, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update deck %s: %w", id, err)
	}
	return d, nil
}

// DeleteDeck removes the deck and every card referencing it in one
// transaction, so no dangling cards are ever visible.
func (db *DB) DeleteDeck(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete of deck %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cards WHERE deck_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete cards of deck %s: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM decks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", id, err)
	}
	return tx.Commit()
}

const cardColumns = `id, deck_id, question, answer, difficulty, created, last_review, next_review, interval, ease_factor, repetitions, fingerprint`

func scanCard(scan func(dest ...any) error) (domain.Card, error) {
	var c domain.Card
	var lastReview, nextReview sql.NullTime
	err := scan(&c.ID, &c.DeckID, &c.Question, &c.Answer, &c.Difficulty, &c.Created,
		&lastReview, &nextReview, &c.Interval, &c.EaseFactor, &c.Repetitions, &c.Fingerprint)
	if err != nil {
		return domain.Card{}, err
	}
	c.LastReview = timePtr(lastReview)
	c.NextReview = timePtr(nextReview)
	return c, nil
}

// ListCards returns every card, or only the cards of one deck when deckID
// is non-empty. Fail-open like ListDecks.
func (db *DB) ListCards(deckID string) []domain.Card {
	query := `SELECT ` + cardColumns + ` FROM cards ORDER BY created`
	args := []any{}
	if deckID != "" {
		query = `SELECT ` + cardColumns + ` FROM cards WHERE deck_id = ? ORDER BY created`
		args = append(args, deckID)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		slog.Warn("Failed to list cards, treating as empty", "deck_id", deckID, "error", err)
		return nil
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows.Scan)
		if err != nil {
			slog.Warn("Failed to scan card row, skipping", "error", err)
			continue
		}
		cards = append(cards, c)
	}
	return cards
}

// GetCard retrieves a card by id, nil when absent.
func (db *DB) GetCard(id string) *domain.Card {
	row := db.conn.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := scanCard(row.Scan)
	if err != nil {
		if err != sql.ErrNoRows {
			slog.Warn("Failed to read card, treating as absent", "id", id, "error", err)
		}
		return nil
	}
	return &c
}

// CreateCard inserts a new card with initial scheduling state and bumps the
// owning deck's card_count in the same transaction. A card against an
// unknown deck id is still written; the count update matches zero rows.
func (db *DB) CreateCard(deckID, question, answer string, difficulty domain.Difficulty) (domain.Card, error) {
	return db.createCard(deckID, question, answer, difficulty, "")
}

// CreateCardWithFingerprint is CreateCard for ingested cards that carry a
// content fingerprint for dedupe.
func (db *DB) CreateCardWithFingerprint(deckID, question, answer string, difficulty domain.Difficulty, fingerprint string) (domain.Card, error) {
	return db.createCard(deckID, question, answer, difficulty, fingerprint)
}

func (db *DB) createCard(deckID, question, answer string, difficulty domain.Difficulty, fingerprint string) (domain.Card, error) {
	if difficulty == "" {
		difficulty = domain.Medium
	}
	now := time.Now()
	c := domain.Card{
		ID:          newID(now),
		DeckID:      deckID,
		Question:    question,
		Answer:      answer,
		Difficulty:  difficulty,
		Created:     now,
		Interval:    1,
		EaseFactor:  2.5,
		Fingerprint: fingerprint,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to begin card insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO cards (id, deck_id, question, answer, difficulty, created, interval, ease_factor, repetitions, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, c.ID, c.DeckID, c.Question, c.Answer, c.Difficulty, c.Created, c.Interval, c.EaseFactor, c.Fingerprint)
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to insert card: %w", err)
	}
	if _, err := tx.Exec(`UPDATE decks SET card_count = card_count + 1 WHERE id = ?`, deckID); err != nil {
		return domain.Card{}, fmt.Errorf("failed to bump card count for deck %s: %w", deckID, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Card{}, fmt.Errorf("failed to commit card insert: %w", err)
	}
	return c, nil
}

// CardPatch carries the mergeable card fields.
type CardPatch struct {
	Question   *string
	Answer     *string
	Difficulty *domain.Difficulty
}

// UpdateCard merges the patch into the matching card. Unknown id performs
// no mutation and returns nil.
func (db *DB) UpdateCard(id string, patch CardPatch) (*domain.Card, error) {
	c := db.GetCard(id)
	if c == nil {
		return nil, nil
	}
	if patch.Question != nil {
		c.Question = *patch.Question
	}
	if patch.Answer != nil {
		c.Answer = *patch.Answer
	}
	if patch.Difficulty != nil {
		c.Difficulty = *patch.Difficulty
	}
	_, err := db.conn.Exec(`
		UPDATE cards SET question = ?, answer = ?, difficulty = ? WHERE id = ?
	`, c.Question, c.Answer, c.Difficulty, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update card %s: %w", id, err)
	}
	return c, nil
}

// DeleteCard removes the card and decrements the owning deck's card_count,
// floored at zero.
func (db *DB) DeleteCard(id string) error {
	c := db.GetCard(id)
	if c == nil {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete of card %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	if _, err := tx.Exec(`UPDATE decks SET card_count = MAX(card_count - 1, 0) WHERE id = ?`, c.DeckID); err != nil {
		return fmt.Errorf("failed to drop card count for deck %s: %w", c.DeckID, err)
	}
	return tx.Commit()
}

// DeleteAllCardsInDeck removes every card of the deck and resets its
// card_count to zero.
func (db *DB) DeleteAllCardsInDeck(deckID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin card wipe for deck %s: %w", deckID, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cards WHERE deck_id = ?`, deckID); err != nil {
		return fmt.Errorf("failed to delete cards of deck %s: %w", deckID, err)
	}
	if _, err := tx.Exec(`UPDATE decks SET card_count = 0 WHERE id = ?`, deckID); err != nil {
		return fmt.Errorf("failed to reset card count for deck %s: %w", deckID, err)
	}
	return tx.Commit()
}

// GetStats returns the aggregate record, zero-valued when none exists yet.
// The total card and deck counts are derived from the live collections on
// every read, so they can never drift from what the store actually holds.
func (db *DB) GetStats() domain.UserStats {
	var s domain.UserStats
	var lastReview sql.NullTime
	row := db.conn.QueryRow(`
		SELECT total_reviews, correct_reviews, streak, last_review
		FROM stats WHERE id = 1
	`)
	if err := row.Scan(&s.TotalReviews, &s.CorrectReviews, &s.Streak, &lastReview); err != nil {
		if err != sql.ErrNoRows {
			slog.Warn("Failed to read stats, treating as zero", "error", err)
		}
		s = domain.UserStats{}
	} else {
		s.LastReview = timePtr(lastReview)
	}

	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM cards`).Scan(&s.TotalCards); err != nil {
		slog.Warn("Failed to count cards, treating as zero", "error", err)
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM decks`).Scan(&s.TotalDecks); err != nil {
		slog.Warn("Failed to count decks, treating as zero", "error", err)
	}
	return s
}

// StatsPatch carries the mergeable stats fields.
type StatsPatch struct {
	TotalCards     *int
	TotalDecks     *int
	TotalReviews   *int
	CorrectReviews *int
	Streak         *int
}

// UpdateStats merges the patch into the aggregate record, creating it on
// first write.
func (db *DB) UpdateStats(patch StatsPatch) error {
	s := db.GetStats()
	if patch.TotalCards != nil {
		s.TotalCards = *patch.TotalCards
	}
	if patch.TotalDecks != nil {
		s.TotalDecks = *patch.TotalDecks
	}
	if patch.TotalReviews != nil {
		s.TotalReviews = *patch.TotalReviews
	}
	if patch.CorrectReviews != nil {
		s.CorrectReviews = *patch.CorrectReviews
	}
	if patch.Streak != nil {
		s.Streak = *patch.Streak
	}
	return db.putStats(db.conn, s)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (db *DB) putStats(e execer, s domain.UserStats) error {
	_, err := e.Exec(`
		INSERT INTO stats (id, total_cards, total_decks, total_reviews, correct_reviews, streak, last_review)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_cards = excluded.total_cards,
			total_decks = excluded.total_decks,
			total_reviews = excluded.total_reviews,
			correct_reviews = excluded.correct_reviews,
			streak = excluded.streak,
			last_review = excluded.last_review
	`, s.TotalCards, s.TotalDecks, s.TotalReviews, s.CorrectReviews, s.Streak, nullTime(s.LastReview))
	if err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}
	return nil
}

// sameDay reports whether two instants fall on the same local calendar day.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SaveReview persists a reviewed card's scheduling fields and bumps the
// deck and global review counters in one transaction. The streak advances
// when the previous review fell on the previous calendar day, holds within
// the same day, and restarts at 1 after a gap.
func (db *DB) SaveReview(card domain.Card, correct bool, now time.Time) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin review save for card %s: %w", card.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE cards
		SET difficulty = ?, last_review = ?, next_review = ?, interval = ?, ease_factor = ?, repetitions = ?
		WHERE id = ?
	`, card.Difficulty, nullTime(card.LastReview), nullTime(card.NextReview),
		card.Interval, card.EaseFactor, card.Repetitions, card.ID)
	if err != nil {
		return fmt.Errorf("failed to save review for card %s: %w", card.ID, err)
	}

	_, err = tx.Exec(`
		UPDATE decks SET total_reviews = total_reviews + 1, last_studied = ? WHERE id = ?
	`, now, card.DeckID)
	if err != nil {
		return fmt.Errorf("failed to bump deck reviews for %s: %w", card.DeckID, err)
	}

	s := db.GetStats()
	s.TotalReviews++
	if correct {
		s.CorrectReviews++
	}
	switch {
	case s.LastReview == nil:
		s.Streak = 1
	case sameDay(*s.LastReview, now):
		// Streak unchanged within the same day.
	case sameDay(s.LastReview.AddDate(0, 0, 1), now):
		s.Streak++
	default:
		s.Streak = 1
	}
	s.LastReview = &now
	if err := db.putStats(tx, s); err != nil {
		return err
	}

	return tx.Commit()
}
