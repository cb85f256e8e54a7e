package sm2

import (
	"math"
	"time"

	"github.com/conorfennell/mnemo/internal/domain"
)

// Quality is the learner's self-reported recall strength on review.
// 0 is a total blackout, 5 is perfect recall. Anything below Pass counts
// as a failed review.
type Quality int

const (
	Blackout Quality = 0
	Pass     Quality = 3
	Perfect  Quality = 5
)

const (
	minEaseFactor   = 1.3
	easeFailPenalty = 0.2
)

// Clamp forces a quality value into the [0, 5] range. No out-of-range
// value may ever be observed past this point.
func Clamp(q Quality) Quality {
	if q < Blackout {
		return Blackout
	}
	if q > Perfect {
		return Perfect
	}
	return q
}

// IsDue reports whether a card should be reviewed at the given instant.
// A card that has never been reviewed is always due.
func IsDue(card domain.Card, now time.Time) bool {
	if card.NextReview == nil {
		return true
	}
	return !card.NextReview.After(now)
}

// Review applies one SM-2 step to the card and returns the updated copy.
// It is pure: the same card, quality and instant always produce the same
// result. A failed review (quality < 3) resets the interval and repetition
// streak and drops the ease factor; a successful one walks the 1, 3,
// round(interval * ease) ladder and applies the standard ease update
// EF' = EF + 0.1 - (5-q) * (0.08 + (5-q) * 0.02), floored at 1.3.
func Review(card domain.Card, quality Quality, now time.Time) domain.Card {
	quality = Clamp(quality)

	if quality < Pass {
		card.Interval = 1
		card.Repetitions = 0
		card.EaseFactor = math.Max(minEaseFactor, card.EaseFactor-easeFailPenalty)
	} else {
		card.Repetitions++
		switch card.Repetitions {
		case 1:
			card.Interval = 1
		case 2:
			card.Interval = 3
		default:
			card.Interval = int(math.Round(float64(card.Interval) * card.EaseFactor))
		}
		q := float64(quality)
		card.EaseFactor = math.Max(minEaseFactor, card.EaseFactor+0.1-(5-q)*(0.08+(5-q)*0.02))
	}

	card.LastReview = &now
	next := now.AddDate(0, 0, card.Interval)
	card.NextReview = &next

	// The declared tag is re-derived as a display hint only; it never feeds
	// back into the numeric fields above.
	switch {
	case quality <= 2:
		card.Difficulty = domain.Hard
	case quality >= 4:
		if card.Difficulty != domain.Easy {
			card.Difficulty = domain.Medium
		}
	}

	return card
}

// Due filters the cards down to those due at the given instant.
func Due(cards []domain.Card, now time.Time) []domain.Card {
	var due []domain.Card
	for _, c := range cards {
		if IsDue(c, now) {
			due = append(due, c)
		}
	}
	return due
}

// ByDifficulty partitions cards by their declared difficulty tag.
func ByDifficulty(cards []domain.Card) map[domain.Difficulty][]domain.Card {
	parts := map[domain.Difficulty][]domain.Card{}
	for _, c := range cards {
		parts[c.Difficulty] = append(parts[c.Difficulty], c)
	}
	return parts
}

// DeckStats summarizes a deck's scheduling state at one instant.
type DeckStats struct {
	TotalCards    int `json:"totalCards"`
	NewCards      int `json:"newCards"`
	DueCards      int `json:"dueCards"`
	ReviewedToday int `json:"reviewedToday"`
	MasteredCards int `json:"masteredCards"`
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Stats derives deck statistics from the cards' scheduling fields.
// "Today" is bounded by local midnight; mastered means a repetition streak
// of at least 10 with an ease factor above 2.5.
func Stats(cards []domain.Card, now time.Time) DeckStats {
	s := DeckStats{TotalCards: len(cards)}
	for _, c := range cards {
		if c.LastReview == nil {
			s.NewCards++
		} else if sameDay(*c.LastReview, now) {
			s.ReviewedToday++
		}
		if IsDue(c, now) {
			s.DueCards++
		}
		if c.Repetitions >= 10 && c.EaseFactor > 2.5 {
			s.MasteredCards++
		}
	}
	return s
}

// RetentionRate is the share of cards holding an ease factor of at least
// 2.5, as an integer percentage. An empty deck retains nothing.
func RetentionRate(cards []domain.Card) int {
	if len(cards) == 0 {
		return 0
	}
	retained := 0
	for _, c := range cards {
		if c.EaseFactor >= 2.5 {
			retained++
		}
	}
	return int(math.Round(float64(retained) / float64(len(cards)) * 100))
}

// StudyOrder interleaves the difficulty partitions round-robin, hardest
// first within each round, so self-reported-hard cards are front-loaded
// while every card still surfaces.
func StudyOrder(cards []domain.Card) []domain.Card {
	parts := ByDifficulty(cards)
	hard, medium, easy := parts[domain.Hard], parts[domain.Medium], parts[domain.Easy]

	ordered := make([]domain.Card, 0, len(cards))
	for i := 0; i < max(len(hard), max(len(medium), len(easy))); i++ {
		if i < len(hard) {
			ordered = append(ordered, hard[i])
		}
		if i < len(medium) {
			ordered = append(ordered, medium[i])
		}
		if i < len(easy) {
			ordered = append(ordered, easy[i])
		}
	}
	return ordered
}

// DailyGoal spreads new-card introduction over a fixed horizon and
// estimates the session length for today's workload.
type DailyGoal struct {
	NewCardsToday    int `json:"newCardsToday"`
	ReviewsNeeded    int `json:"reviewsNeeded"`
	EstimatedMinutes int `json:"estimatedMinutes"`
}

// Goal computes today's study goal. New cards are introduced over
// horizonDays, reduced by cards already reviewed today and floored at
// zero; the time estimate assumes minutesPerCard per card.
func Goal(cards []domain.Card, now time.Time, horizonDays int, minutesPerCard float64) DailyGoal {
	s := Stats(cards, now)
	newToday := int(math.Ceil(float64(s.NewCards)/float64(horizonDays))) - s.ReviewedToday
	if newToday < 0 {
		newToday = 0
	}
	return DailyGoal{
		NewCardsToday:    newToday,
		ReviewsNeeded:    s.DueCards,
		EstimatedMinutes: int(math.Round(float64(newToday+s.DueCards) * minutesPerCard)),
	}
}
