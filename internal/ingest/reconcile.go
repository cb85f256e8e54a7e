package ingest

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/conorfennell/mnemo/internal/storage"
)

// Report summarizes one reconciliation run.
type Report struct {
	Parsed   int
	Inserted int
	Pruned   int
	Errors   []error
}

// Reconcile walks dir for markdown files and brings the deck's ingested
// cards in line with what the sources contain: unseen entries are inserted
// through CreateCard, and previously ingested cards whose fingerprint no
// longer appears in any source are pruned. Cards the learner added by hand
// carry no fingerprint and are never touched.
func Reconcile(db *storage.DB, deckID, dir string) (Report, error) {
	var report Report

	known := make(map[string]string) // fingerprint -> card id
	for _, card := range db.ListCards(deckID) {
		if card.Fingerprint != "" {
			known[card.Fingerprint] = card.ID
		}
	}

	seen := make(map[string]bool)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		entries, parseErr := ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		for _, entry := range entries {
			report.Parsed++
			fp := Fingerprint(entry)
			seen[fp] = true

			if _, exists := known[fp]; exists {
				continue
			}
			slog.Info("New card found, inserting", "deck_id", deckID, "fingerprint", fp[:12])
			card, insertErr := db.CreateCardWithFingerprint(deckID, entry.Question, entry.Answer, entry.Difficulty, fp)
			if insertErr != nil {
				report.Errors = append(report.Errors, fmt.Errorf("inserting card from %s: %w", path, insertErr))
				continue
			}
			known[fp] = card.ID
			report.Inserted++
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("walking %s: %w", dir, walkErr)
	}

	for fp, cardID := range known {
		if seen[fp] {
			continue
		}
		slog.Info("Orphaned card, pruning", "deck_id", deckID, "fingerprint", fp[:12])
		if err := db.DeleteCard(cardID); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("pruning card %s: %w", cardID, err))
			continue
		}
		report.Pruned++
	}

	slog.Info("Reconciliation complete",
		"deck_id", deckID,
		"parsed", report.Parsed,
		"inserted", report.Inserted,
		"pruned", report.Pruned,
		"errors", len(report.Errors),
	)
	return report, nil
}
