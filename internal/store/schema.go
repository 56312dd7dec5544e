package store

// Schema v1 - recordings, folder hierarchy and the association table
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per imported, recorded or downloaded media item
CREATE TABLE IF NOT EXISTS recordings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  filename TEXT NOT NULL,
  file_path TEXT NOT NULL UNIQUE,
  date_created TEXT NOT NULL,
  duration REAL,
  raw_transcript TEXT,
  processed_text TEXT,
  raw_transcript_formatted TEXT,
  processed_text_formatted TEXT
);

-- Folder hierarchy; deleting a folder removes its whole subtree
CREATE TABLE IF NOT EXISTS folders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  parent_id INTEGER REFERENCES folders(id) ON DELETE CASCADE,
  created_at TEXT NOT NULL
);

-- Many-to-many membership; never cascades into recordings
CREATE TABLE IF NOT EXISTS recording_folders (
  recording_id INTEGER NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
  folder_id INTEGER NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
  PRIMARY KEY (recording_id, folder_id)
);
`

// Schema v2 - lookup indexes and sibling name uniqueness
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_recordings_date_created ON recordings(date_created);
CREATE INDEX IF NOT EXISTS idx_folders_parent_id ON folders(parent_id);
CREATE INDEX IF NOT EXISTS idx_recording_folders_folder_id ON recording_folders(folder_id);

-- Root folders have NULL parent_id, which UNIQUE would treat as distinct
CREATE UNIQUE INDEX IF NOT EXISTS idx_folders_sibling_name ON folders(COALESCE(parent_id, 0), name);
`

// Schema v3 - drop the file_path index that duplicated the UNIQUE autoindex
const schemaV3 = `
DROP INDEX IF EXISTS idx_recording_filepath;
`
