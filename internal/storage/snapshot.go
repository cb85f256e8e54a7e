package storage

import (
	"fmt"
	"time"

	"github.com/conorfennell/mnemo/internal/domain"
)

// ExportSnapshot captures all three collections for backup or remote sync.
func (db *DB) ExportSnapshot() domain.Snapshot {
	stats := db.GetStats()
	return domain.Snapshot{
		Version:    domain.SnapshotVersion,
		Decks:      db.ListDecks(),
		Flashcards: db.ListCards(""),
		Stats:      &stats,
		ExportedAt: time.Now().UnixMilli(),
	}
}

// ImportSnapshot replaces each collection present in the snapshot wholesale;
// collections left nil are kept untouched. Last-writer-wins at collection
// granularity, not per-record merge.
func (db *DB) ImportSnapshot(snap domain.Snapshot) error {
	if snap.Version > domain.SnapshotVersion {
		return fmt.Errorf("snapshot version %d is newer than supported version %d", snap.Version, domain.SnapshotVersion)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot import: %w", err)
	}
	defer tx.Rollback()

	if snap.Decks != nil {
		if _, err := tx.Exec(`DELETE FROM decks`); err != nil {
			return fmt.Errorf("failed to clear decks for import: %w", err)
		}
		for _, d := range snap.Decks {
			_, err := tx.Exec(`
				INSERT INTO decks (id, name, description, subject, created, card_count, last_studied, total_reviews)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, d.ID, d.Name, d.Description, d.Subject, d.Created, d.CardCount, nullTime(d.LastStudied), d.TotalReviews)
			if err != nil {
				return fmt.Errorf("failed to import deck %s: %w", d.ID, err)
			}
		}
	}

	if snap.Flashcards != nil {
		if _, err := tx.Exec(`DELETE FROM cards`); err != nil {
			return fmt.Errorf("failed to clear cards for import: %w", err)
		}
		for _, c := range snap.Flashcards {
			_, err := tx.Exec(`
				INSERT INTO cards (id, deck_id, question, answer, difficulty, created, last_review, next_review, interval, ease_factor, repetitions, fingerprint)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, c.ID, c.DeckID, c.Question, c.Answer, c.Difficulty, c.Created,
				nullTime(c.LastReview), nullTime(c.NextReview), c.Interval, c.EaseFactor, c.Repetitions, c.Fingerprint)
			if err != nil {
				return fmt.Errorf("failed to import card %s: %w", c.ID, err)
			}
		}
	}

	if snap.Stats != nil {
		if err := db.putStats(tx, *snap.Stats); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// WipeAll removes all three collections.
func (db *DB) WipeAll() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin wipe: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"cards", "decks", "stats"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", table, err)
		}
	}
	return tx.Commit()
}
