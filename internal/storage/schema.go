package storage

const schema = `
-- The 'decks' table stores named card collections. card_count is
-- denormalized and maintained by the store on every card insert/delete.
CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL DEFAULT '',
    created DATETIME NOT NULL,
    card_count INTEGER NOT NULL DEFAULT 0,
    last_studied DATETIME,
    total_reviews INTEGER NOT NULL DEFAULT 0
);

-- The 'cards' table stores question-answer pairs with SM-2 state.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    difficulty TEXT NOT NULL DEFAULT 'medium',
    created DATETIME NOT NULL,
    last_review DATETIME,
    next_review DATETIME,
    interval INTEGER NOT NULL DEFAULT 1,
    ease_factor REAL NOT NULL DEFAULT 2.5,
    repetitions INTEGER NOT NULL DEFAULT 0,
    fingerprint TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_cards_deck ON cards(deck_id);

-- The 'stats' table holds the single process-wide aggregate record.
CREATE TABLE IF NOT EXISTS stats (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    total_cards INTEGER NOT NULL DEFAULT 0,
    total_decks INTEGER NOT NULL DEFAULT 0,
    total_reviews INTEGER NOT NULL DEFAULT 0,
    correct_reviews INTEGER NOT NULL DEFAULT 0,
    streak INTEGER NOT NULL DEFAULT 0,
    last_review DATETIME
);
`
