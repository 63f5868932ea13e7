package sqlite

const schema = `
-- Activities table: one row per node in the work hierarchy.
-- ancestry is the ancestor id list joined by '/', root rows store ''.
-- depth always equals the number of ancestry segments.
CREATE TABLE IF NOT EXISTS activities (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL CHECK(length(name) <= 500),
    description TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',
    priority INTEGER NOT NULL DEFAULT 2 CHECK(priority >= 0 AND priority <= 4),
    parent_id TEXT,
    depth INTEGER NOT NULL DEFAULT 0,
    ancestry TEXT NOT NULL DEFAULT '',
    owner_entity_id TEXT,
    client_entity_id TEXT,
    deadline DATETIME,
    start_date DATETIME,
    end_date DATETIME,
    tags TEXT NOT NULL DEFAULT '[]',
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_activity_at DATETIME,
    deleted_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_activities_parent ON activities(parent_id);
CREATE INDEX IF NOT EXISTS idx_activities_type_status ON activities(type, status);
CREATE INDEX IF NOT EXISTS idx_activities_owner ON activities(owner_entity_id);
CREATE INDEX IF NOT EXISTS idx_activities_ancestry ON activities(ancestry);
CREATE INDEX IF NOT EXISTS idx_activities_deleted ON activities(deleted_at);

-- Entities: people and organizations referenced by activities
CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    kind TEXT NOT NULL CHECK(kind IN ('person', 'organization')),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);

-- Activity membership: (activity, entity, role) is unique; deactivation
-- is soft via is_active/left_at.
CREATE TABLE IF NOT EXISTS activity_members (
    activity_id TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    role TEXT NOT NULL CHECK(role IN ('owner', 'client', 'member')),
    is_active INTEGER NOT NULL DEFAULT 1,
    joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    left_at DATETIME,
    PRIMARY KEY (activity_id, entity_id, role),
    FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_members_entity ON activity_members(entity_id);

-- Commitments between entities, optionally linked to one activity
CREATE TABLE IF NOT EXISTS commitments (
    id TEXT PRIMARY KEY,
    from_entity_id TEXT NOT NULL,
    to_entity_id TEXT NOT NULL,
    activity_id TEXT,
    description TEXT NOT NULL DEFAULT '',
    due_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_commitments_activity ON commitments(activity_id);

-- Embedding vectors supplied by the external embedding service,
-- stored as a JSON array of floats
CREATE TABLE IF NOT EXISTS activity_embeddings (
    activity_id TEXT PRIMARY KEY,
    vector TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
);

-- Data-quality reports produced by audit runs
CREATE TABLE IF NOT EXISTS quality_reports (
    id TEXT PRIMARY KEY,
    report_date DATETIME NOT NULL,
    metrics TEXT NOT NULL,
    issues TEXT NOT NULL DEFAULT '[]',
    resolutions TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'reviewed', 'resolved')),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_reports_date ON quality_reports(report_date);
`
