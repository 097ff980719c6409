package db

// migrationsSQL creates both layouts. The normalized tables are the default;
// flat_* hold the legacy delimiter-joined rows. words doubles as the dictionary
// for both. Statements are split on ';' so none may contain one.
const migrationsSQL = `
CREATE TABLE IF NOT EXISTS sides (
	date  TEXT PRIMARY KEY,
	sides TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS solutions (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	date     TEXT NOT NULL,
	position INTEGER NOT NULL,
	UNIQUE (date, position)
);

CREATE INDEX IF NOT EXISTS idx_solutions_date ON solutions (date);

CREATE TABLE IF NOT EXISTS words (
	text       TEXT PRIMARY KEY,
	definition TEXT
);

CREATE TABLE IF NOT EXISTS solution_words (
	solution_id INTEGER NOT NULL REFERENCES solutions (id) ON DELETE CASCADE,
	word        TEXT NOT NULL REFERENCES words (text),
	ord         INTEGER NOT NULL,
	PRIMARY KEY (solution_id, word)
);

CREATE INDEX IF NOT EXISTS idx_solution_words_word ON solution_words (word);

CREATE TABLE IF NOT EXISTS flat_sides (
	date  TEXT PRIMARY KEY,
	sides TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS flat_solutions (
	date     TEXT NOT NULL,
	position INTEGER NOT NULL,
	words    TEXT NOT NULL,
	PRIMARY KEY (date, position)
)
`
