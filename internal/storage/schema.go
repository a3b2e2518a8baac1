package storage

const schema = `
-- The 'entries' table stores one row per card, keyed by the hash of its normalized question.
CREATE TABLE IF NOT EXISTS entries (
    hash TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    priority INTEGER NOT NULL,
    created_at TEXT NOT NULL -- RFC 3339, UTC
);

-- The 'reviews' table is the append-only review history of each entry, in order.
CREATE TABLE IF NOT EXISTS reviews (
    entry_hash TEXT NOT NULL,
    seq INTEGER NOT NULL,
    instant TEXT NOT NULL,
    result TEXT NOT NULL CHECK (result IN ('S', 'F')),

    PRIMARY KEY (entry_hash, seq),
    FOREIGN KEY(entry_hash) REFERENCES entries(hash) ON DELETE CASCADE
);

-- The 'settings' table holds the study settings of the collection as label/value pairs.
CREATE TABLE IF NOT EXISTS settings (
    label TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- The 'sources' table tracks where cards are imported from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL CHECK (type IN ('local', 'git')),
    last_scanned TEXT
);

-- The 'source_cards' table remembers which cards a source produced on its last scan.
CREATE TABLE IF NOT EXISTS source_cards (
    source_id INTEGER NOT NULL,
    entry_hash TEXT NOT NULL,

    PRIMARY KEY (source_id, entry_hash),
    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE CASCADE
);
`
