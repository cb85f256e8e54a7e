package sm2

import (
	"math"
	"testing"
	"time"

	"github.com/conorfennell/mnemo/internal/domain"
)

func newCard() domain.Card {
	return domain.Card{
		ID:         "c1",
		DeckID:     "d1",
		Question:   "Q",
		Answer:     "A",
		Difficulty: domain.Medium,
		Created:    time.Now(),
		Interval:   1,
		EaseFactor: 2.5,
	}
}

func TestReviewSuccessLadder(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	card := newCard()

	// Quality sequence 5, 4, 3 over a new card.
	card = Review(card, 5, now)
	if card.Repetitions != 1 || card.Interval != 1 {
		t.Errorf("After first success, expected reps=1 interval=1, got reps=%d interval=%d", card.Repetitions, card.Interval)
	}

	card = Review(card, 4, now)
	if card.Repetitions != 2 || card.Interval != 3 {
		t.Errorf("After second success, expected reps=2 interval=3, got reps=%d interval=%d", card.Repetitions, card.Interval)
	}

	easeBefore := card.EaseFactor
	card = Review(card, 3, now)
	wantInterval := int(math.Round(3 * easeBefore))
	if card.Repetitions != 3 || card.Interval != wantInterval {
		t.Errorf("After third success, expected reps=3 interval=%d, got reps=%d interval=%d", wantInterval, card.Repetitions, card.Interval)
	}
	if card.NextReview == nil || !card.NextReview.Equal(now.AddDate(0, 0, card.Interval)) {
		t.Errorf("Expected next review %d days out, got %v", card.Interval, card.NextReview)
	}
}

func TestReviewFailureReset(t *testing.T) {
	now := time.Now()
	card := newCard()
	card.Interval = 10
	card.EaseFactor = 2.0
	card.Repetitions = 4

	card = Review(card, 1, now)

	if card.Interval != 1 {
		t.Errorf("Expected interval reset to 1, got %d", card.Interval)
	}
	if card.Repetitions != 0 {
		t.Errorf("Expected repetitions reset to 0, got %d", card.Repetitions)
	}
	if math.Abs(card.EaseFactor-1.8) > 1e-9 {
		t.Errorf("Expected ease factor 1.8, got %f", card.EaseFactor)
	}
}

func TestEaseFactorFloor(t *testing.T) {
	now := time.Now()
	qualities := []Quality{0, 1, 2, 0, 3, 1, 5, 0, 0, 2, 4, 0, 1, 1, 1}

	card := newCard()
	for i, q := range qualities {
		card = Review(card, q, now)
		if card.EaseFactor < 1.3 {
			t.Fatalf("Ease factor dropped below 1.3 after review %d (q=%d): %f", i, q, card.EaseFactor)
		}
		if card.Interval < 1 {
			t.Fatalf("Interval dropped below 1 after review %d (q=%d): %d", i, q, card.Interval)
		}
	}
}

func TestReviewClampsQuality(t *testing.T) {
	now := time.Now()

	low := Review(newCard(), -3, now)
	if want := Review(newCard(), 0, now); low.EaseFactor != want.EaseFactor || low.Interval != want.Interval {
		t.Errorf("Quality -3 should behave as 0: got ease=%f interval=%d", low.EaseFactor, low.Interval)
	}

	high := Review(newCard(), 9, now)
	if want := Review(newCard(), 5, now); high.EaseFactor != want.EaseFactor || high.Interval != want.Interval {
		t.Errorf("Quality 9 should behave as 5: got ease=%f interval=%d", high.EaseFactor, high.Interval)
	}
}

func TestReviewIsDeterministic(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	a := Review(newCard(), 4, now)
	b := Review(newCard(), 4, now)
	if a.EaseFactor != b.EaseFactor || a.Interval != b.Interval || !a.NextReview.Equal(*b.NextReview) {
		t.Errorf("Identical inputs produced different outputs: %+v vs %+v", a, b)
	}
}

func TestDifficultyHint(t *testing.T) {
	now := time.Now()

	t.Run("low quality tags hard", func(t *testing.T) {
		card := newCard()
		card.Difficulty = domain.Easy
		card = Review(card, 2, now)
		if card.Difficulty != domain.Hard {
			t.Errorf("Expected hard, got %s", card.Difficulty)
		}
	})

	t.Run("high quality promotes hard to medium", func(t *testing.T) {
		card := newCard()
		card.Difficulty = domain.Hard
		card = Review(card, 5, now)
		if card.Difficulty != domain.Medium {
			t.Errorf("Expected medium, got %s", card.Difficulty)
		}
	})

	t.Run("high quality keeps easy", func(t *testing.T) {
		card := newCard()
		card.Difficulty = domain.Easy
		card = Review(card, 4, now)
		if card.Difficulty != domain.Easy {
			t.Errorf("Expected easy to stay, got %s", card.Difficulty)
		}
	})

	t.Run("quality three leaves tag alone", func(t *testing.T) {
		card := newCard()
		card.Difficulty = domain.Hard
		card = Review(card, 3, now)
		if card.Difficulty != domain.Hard {
			t.Errorf("Expected hard to stay, got %s", card.Difficulty)
		}
	})
}

func TestIsDue(t *testing.T) {
	now := time.Now()

	t.Run("new card is always due", func(t *testing.T) {
		if !IsDue(newCard(), now) {
			t.Error("Expected a card with no reviews to be due")
		}
	})

	t.Run("future next review is not due", func(t *testing.T) {
		card := Review(newCard(), 5, now)
		if IsDue(card, now) {
			t.Error("Expected a freshly reviewed card not to be due")
		}
		if !IsDue(card, now.AddDate(0, 0, card.Interval)) {
			t.Error("Expected the card to be due once its interval elapses")
		}
	})
}

func TestStats(t *testing.T) {
	now := time.Date(2026, 8, 29, 15, 0, 0, 0, time.Local)
	yesterday := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 5)

	mastered := newCard()
	mastered.Repetitions = 12
	mastered.EaseFactor = 2.6
	mastered.LastReview = &yesterday
	mastered.NextReview = &future

	reviewedToday := newCard()
	earlier := now.Add(-2 * time.Hour)
	reviewedToday.LastReview = &earlier
	reviewedToday.NextReview = &future

	cards := []domain.Card{newCard(), mastered, reviewedToday}
	s := Stats(cards, now)

	if s.TotalCards != 3 {
		t.Errorf("Expected 3 total cards, got %d", s.TotalCards)
	}
	if s.NewCards != 1 {
		t.Errorf("Expected 1 new card, got %d", s.NewCards)
	}
	if s.DueCards != 1 {
		t.Errorf("Expected 1 due card, got %d", s.DueCards)
	}
	if s.ReviewedToday != 1 {
		t.Errorf("Expected 1 card reviewed today, got %d", s.ReviewedToday)
	}
	if s.MasteredCards != 1 {
		t.Errorf("Expected 1 mastered card, got %d", s.MasteredCards)
	}
}

func TestRetentionRate(t *testing.T) {
	if got := RetentionRate(nil); got != 0 {
		t.Errorf("Expected 0%% retention on an empty deck, got %d", got)
	}

	weak := newCard()
	weak.EaseFactor = 1.8
	cards := []domain.Card{newCard(), newCard(), weak}
	if got := RetentionRate(cards); got != 67 {
		t.Errorf("Expected 67%% retention, got %d", got)
	}
}

func TestStudyOrder(t *testing.T) {
	mk := func(id string, d domain.Difficulty) domain.Card {
		c := newCard()
		c.ID = id
		c.Difficulty = d
		return c
	}
	cards := []domain.Card{
		mk("e1", domain.Easy), mk("e2", domain.Easy),
		mk("m1", domain.Medium),
		mk("h1", domain.Hard), mk("h2", domain.Hard), mk("h3", domain.Hard),
	}

	got := StudyOrder(cards)
	want := []string{"h1", "m1", "e1", "h2", "e2", "h3"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d cards in order, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestGoal(t *testing.T) {
	now := time.Date(2026, 8, 29, 15, 0, 0, 0, time.Local)

	t.Run("empty deck", func(t *testing.T) {
		g := Goal(nil, now, 7, 1.5)
		if g.NewCardsToday != 0 || g.ReviewsNeeded != 0 || g.EstimatedMinutes != 0 {
			t.Errorf("Expected zero goal for empty deck, got %+v", g)
		}
	})

	t.Run("spreads new cards over horizon", func(t *testing.T) {
		var cards []domain.Card
		for i := 0; i < 10; i++ {
			cards = append(cards, newCard())
		}
		g := Goal(cards, now, 7, 1.5)
		if g.NewCardsToday != 2 { // ceil(10/7)
			t.Errorf("Expected 2 new cards today, got %d", g.NewCardsToday)
		}
		if g.ReviewsNeeded != 10 { // all new cards are due
			t.Errorf("Expected 10 reviews needed, got %d", g.ReviewsNeeded)
		}
		if g.EstimatedMinutes != 18 { // round((2+10)*1.5)
			t.Errorf("Expected 18 estimated minutes, got %d", g.EstimatedMinutes)
		}
	})

	t.Run("cards reviewed today reduce the goal", func(t *testing.T) {
		recent := now.Add(-time.Hour)
		future := now.AddDate(0, 0, 3)
		reviewed := newCard()
		reviewed.LastReview = &recent
		reviewed.NextReview = &future

		cards := []domain.Card{newCard(), reviewed}
		g := Goal(cards, now, 7, 1.5)
		if g.NewCardsToday != 0 { // ceil(1/7)=1, minus 1 reviewed today
			t.Errorf("Expected 0 new cards today, got %d", g.NewCardsToday)
		}
	})
}
