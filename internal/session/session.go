// Package session drives a learner through one study session at a time.
//
// The controller is a two-state machine: Idle (no session) and Active.
// It owns a working set of card snapshots frozen at session start and a
// cursor through them; ratings flow through the scheduler and the store
// before updating the running score. The controller is an owned value the
// caller threads through its handlers, not ambient state.
package session

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/conorfennell/mnemo/internal/domain"
	"github.com/conorfennell/mnemo/internal/sm2"
	"github.com/conorfennell/mnemo/internal/storage"
)

// Options tune the working-set construction and the test-mode countdown.
type Options struct {
	// TestLimit caps the shuffled working set in test mode.
	TestLimit int
	// CardTimeout is the per-card countdown in test mode. On expiry the
	// card is auto-reviewed with quality 0 and the session advances.
	// Zero disables the countdown.
	CardTimeout time.Duration
}

// DefaultOptions mirror the product defaults: 30-card tests with a
// 30-second countdown per card.
func DefaultOptions() Options {
	return Options{TestLimit: 30, CardTimeout: 30 * time.Second}
}

// Controller runs at most one study session. Starting a new session while
// one is active silently replaces it.
//
// All methods are safe to call from the timer callback's goroutine; the
// generation counter makes a stale timer firing against a replaced session
// or a moved cursor a no-op.
type Controller struct {
	store *storage.DB
	opts  Options

	mu      sync.Mutex
	active  bool
	deckID  string
	mode    domain.Mode
	cards   []domain.Card
	index   int
	score   int
	started time.Time
	gen     int
	timer   *time.Timer
}

// New returns an idle controller over the given store.
func New(store *storage.DB, opts Options) *Controller {
	if opts.TestLimit <= 0 {
		opts.TestLimit = 30
	}
	return &Controller{store: store, opts: opts}
}

// State is a read-only view of the session for display.
type State struct {
	Active    bool
	DeckID    string
	Mode      domain.Mode
	Index     int
	Total     int
	Score     int
	Started   time.Time
	Completed bool
}

// Start freezes a working set for the deck and mode and begins a session,
// replacing any session in progress. An empty working set is a valid
// session that is immediately complete.
func (c *Controller) Start(deckID string, mode domain.Mode) State {
	cards := c.store.ListCards(deckID)
	now := time.Now()

	var working []domain.Card
	switch mode {
	case domain.Test:
		working = append(working, cards...)
		rand.Shuffle(len(working), func(i, j int) {
			working[i], working[j] = working[j], working[i]
		})
		if len(working) > c.opts.TestLimit {
			working = working[:c.opts.TestLimit]
		}
	case domain.Review:
		for _, card := range sm2.Due(cards, now) {
			if card.Difficulty == domain.Hard {
				working = append(working, card)
			}
		}
	default: // learn: every card in store order
		working = cards
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.active = true
	c.deckID = deckID
	c.mode = mode
	c.cards = working
	c.index = 0
	c.score = 0
	c.started = now
	c.gen++
	c.armTimerLocked()
	return c.stateLocked()
}

// Current returns the card under the cursor. ok is false when the
// controller is idle or the session is complete.
func (c *Controller) Current() (card domain.Card, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.index >= len(c.cards) {
		return domain.Card{}, false
	}
	return c.cards[c.index], true
}

// Advance moves the cursor to the next card. Reaching the end of the
// working set marks the session complete but keeps it active until End.
func (c *Controller) Advance() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return c.stateLocked()
	}
	c.stopTimerLocked()
	if c.index < len(c.cards) {
		c.index++
	}
	c.armTimerLocked()
	return c.stateLocked()
}

// Review grades the identified card, persists the new scheduling state and
// updates the running score. It does not advance the cursor.
func (c *Controller) Review(cardID string, quality sm2.Quality) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return fmt.Errorf("no active session")
	}
	return c.reviewLocked(cardID, quality)
}

func (c *Controller) reviewLocked(cardID string, quality sm2.Quality) error {
	pos := -1
	for i, card := range c.cards {
		if card.ID == cardID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return fmt.Errorf("card %s is not in the working set", cardID)
	}

	// A rating disarms the countdown: only a card that expires without one
	// may be auto-failed. Advance re-arms the timer for the next card.
	if pos == c.index {
		c.stopTimerLocked()
	}

	quality = sm2.Clamp(quality)
	now := time.Now()
	updated := sm2.Review(c.cards[pos], quality, now)
	if err := c.store.SaveReview(updated, quality >= sm2.Pass, now); err != nil {
		return err
	}

	// Refresh the snapshot from the store so the working set never shows
	// stale scheduling fields for a card already reviewed this session.
	if fresh := c.store.GetCard(cardID); fresh != nil {
		c.cards[pos] = *fresh
	} else {
		c.cards[pos] = updated
	}

	if quality >= sm2.Pass {
		c.score++
	}
	return nil
}

// End discards the session unconditionally and returns to Idle. Safe to
// call from any active state, including mid-countdown.
func (c *Controller) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.active = false
	c.cards = nil
	c.index = 0
	c.score = 0
	c.gen++
}

// Session returns the current display state.
func (c *Controller) Session() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	return State{
		Active:    c.active,
		DeckID:    c.deckID,
		Mode:      c.mode,
		Index:     c.index,
		Total:     len(c.cards),
		Score:     c.score,
		Started:   c.started,
		Completed: c.active && c.index >= len(c.cards),
	}
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// armTimerLocked starts the test-mode countdown for the card under the
// cursor. The captured generation and index pin the timer to exactly this
// card in exactly this session.
func (c *Controller) armTimerLocked() {
	if c.mode != domain.Test || c.opts.CardTimeout <= 0 {
		return
	}
	if !c.active || c.index >= len(c.cards) {
		return
	}
	gen, index := c.gen, c.index
	c.timer = time.AfterFunc(c.opts.CardTimeout, func() {
		c.expire(gen, index)
	})
}

// expire handles a countdown that ran out: the card is graded as a total
// failure and the session advances. A timer from a replaced session or a
// moved cursor does nothing.
func (c *Controller) expire(gen, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || gen != c.gen || index != c.index || c.index >= len(c.cards) {
		return
	}
	if err := c.reviewLocked(c.cards[c.index].ID, sm2.Blackout); err != nil {
		// The card stays unscored; still move on so the session cannot wedge.
		slog.Warn("Failed to auto-review expired card", "card_id", c.cards[c.index].ID, "error", err)
	}
	c.index++
	c.armTimerLocked()
}
