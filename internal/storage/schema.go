package storage

// All ids are Discord snowflakes supplied by the caller, never generated
// here, so no table uses AUTOINCREMENT. Foreign keys are declared for
// integrity checking, but cascades run as explicit ordered deletes so the
// traversal order stays testable.
const Schema = `
CREATE TABLE IF NOT EXISTS servers (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    icon TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS discord_accounts (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    avatar TEXT
);

CREATE TABLE IF NOT EXISTS ignored_accounts (
    id INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS channels (
    id INTEGER PRIMARY KEY,
    server_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    type INTEGER NOT NULL,
    parent_id INTEGER,
    FOREIGN KEY (server_id) REFERENCES servers(id)
);

CREATE INDEX IF NOT EXISTS idx_channels_server ON channels(server_id);
CREATE INDEX IF NOT EXISTS idx_channels_parent ON channels(parent_id);

CREATE TABLE IF NOT EXISTS channel_settings (
    channel_id INTEGER PRIMARY KEY,
    indexing_enabled BOOLEAN NOT NULL DEFAULT 0,
    auto_thread_enabled BOOLEAN NOT NULL DEFAULT 0,
    mark_solution_enabled BOOLEAN NOT NULL DEFAULT 0,
    send_mark_solution_instructions BOOLEAN NOT NULL DEFAULT 0,
    solution_tag_id INTEGER,
    FOREIGN KEY (channel_id) REFERENCES channels(id)
);

CREATE TABLE IF NOT EXISTS server_preferences (
    server_id INTEGER PRIMARY KEY,
    consider_all_messages_public BOOLEAN NOT NULL DEFAULT 0,
    anonymize_messages BOOLEAN NOT NULL DEFAULT 0,
    read_the_rules_consent BOOLEAN NOT NULL DEFAULT 0,
    plan TEXT NOT NULL DEFAULT 'free',
    FOREIGN KEY (server_id) REFERENCES servers(id)
);

CREATE TABLE IF NOT EXISTS user_server_settings (
    user_id INTEGER NOT NULL,
    server_id INTEGER NOT NULL,
    message_indexing_disabled BOOLEAN NOT NULL DEFAULT 0,
    can_publicly_display_messages BOOLEAN NOT NULL DEFAULT 0,
    api_calls_used INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, server_id)
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY,
    author_id INTEGER NOT NULL,
    server_id INTEGER NOT NULL,
    channel_id INTEGER NOT NULL,
    parent_channel_id INTEGER,
    child_thread_id INTEGER,
    question_id INTEGER,
    content TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id);
CREATE INDEX IF NOT EXISTS idx_messages_author_server ON messages(author_id, server_id);
CREATE INDEX IF NOT EXISTS idx_messages_question ON messages(question_id);

CREATE TABLE IF NOT EXISTS attachments (
    id INTEGER PRIMARY KEY,
    message_id INTEGER NOT NULL,
    filename TEXT NOT NULL,
    content_type TEXT,
    size INTEGER NOT NULL DEFAULT 0,
    storage_id TEXT,
    FOREIGN KEY (message_id) REFERENCES messages(id)
);

CREATE INDEX IF NOT EXISTS idx_attachments_message ON attachments(message_id);

CREATE TABLE IF NOT EXISTS emojis (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reactions (
    message_id INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    emoji_id INTEGER NOT NULL,
    PRIMARY KEY (message_id, user_id, emoji_id),
    FOREIGN KEY (message_id) REFERENCES messages(id),
    FOREIGN KEY (emoji_id) REFERENCES emojis(id)
);

CREATE INDEX IF NOT EXISTS idx_reactions_message ON reactions(message_id);
`
