package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kmorel/lantern/internal/consent"
)

// ErrNotFound is returned when a referenced message, channel, or server does
// not exist. Lookups that treat absence as normal return (nil, nil) instead.
var ErrNotFound = errors.New("not found")

// ErrCrossServerSolution is returned when a solution link would span two
// servers.
var ErrCrossServerSolution = errors.New("question and solution are in different servers")

type Store struct {
	db *sql.DB
}

type Server struct {
	ID   int64
	Name string
	Icon string
}

type DiscordAccount struct {
	ID     int64
	Name   string
	Avatar string
}

type ServerPreferences struct {
	ServerID                  int64
	ConsiderAllMessagesPublic bool
	AnonymizeMessages         bool
	ReadTheRulesConsent       bool
	Plan                      string
}

type UserServerSettings struct {
	UserID                     int64
	ServerID                   int64
	MessageIndexingDisabled    bool
	CanPubliclyDisplayMessages bool
	APICallsUsed               int
}

// NewStore opens the database and initializes the schema.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Every mutation here is a multi-step cascade or reconcile; a single
	// writer keeps them serializable without busy-retry loops.
	db.SetMaxOpenConns(1)

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Servers

// UpsertServer inserts or replaces a server record by id.
func (s *Store) UpsertServer(server *Server) error {
	_, err := s.db.Exec(
		`INSERT INTO servers (id, name, icon) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, icon = excluded.icon`,
		server.ID, server.Name, server.Icon,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert server %d: %w", server.ID, err)
	}
	return nil
}

// GetServer returns a server by id, or (nil, nil) if it is not indexed.
func (s *Store) GetServer(serverID int64) (*Server, error) {
	var srv Server
	var icon sql.NullString
	err := s.db.QueryRow(
		"SELECT id, name, icon FROM servers WHERE id = ?", serverID,
	).Scan(&srv.ID, &srv.Name, &icon)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get server %d: %w", serverID, err)
	}
	srv.Icon = icon.String
	return &srv, nil
}

// Discord accounts

// UpsertAccount inserts or replaces an indexed account by id.
func (s *Store) UpsertAccount(account *DiscordAccount) error {
	_, err := s.db.Exec(
		`INSERT INTO discord_accounts (id, name, avatar) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, avatar = excluded.avatar`,
		account.ID, account.Name, account.Avatar,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account %d: %w", account.ID, err)
	}
	return nil
}

// GetAccount returns an indexed account, or (nil, nil) if unknown.
func (s *Store) GetAccount(accountID int64) (*DiscordAccount, error) {
	var a DiscordAccount
	var avatar sql.NullString
	err := s.db.QueryRow(
		"SELECT id, name, avatar FROM discord_accounts WHERE id = ?", accountID,
	).Scan(&a.ID, &a.Name, &avatar)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", accountID, err)
	}
	a.Avatar = avatar.String
	return &a, nil
}

// IgnoreAccount marks an account as permanently excluded from indexing and
// removes everything it authored, everywhere.
func (s *Store) IgnoreAccount(accountID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin ignore account: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT OR IGNORE INTO ignored_accounts (id) VALUES (?)", accountID); err != nil {
		return fmt.Errorf("failed to ignore account %d: %w", accountID, err)
	}
	if err := deleteMessagesWhere(tx, "author_id = ?", accountID); err != nil {
		return fmt.Errorf("failed to delete messages for ignored account %d: %w", accountID, err)
	}
	return tx.Commit()
}

// IsAccountIgnored reports whether an account is on the ignore list.
func (s *Store) IsAccountIgnored(accountID int64) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM ignored_accounts WHERE id = ?", accountID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check ignored account %d: %w", accountID, err)
	}
	return true, nil
}

// Server preferences

// GetServerPreferences returns a server's visibility defaults, or (nil, nil)
// for a never-configured server.
func (s *Store) GetServerPreferences(serverID int64) (*ServerPreferences, error) {
	var p ServerPreferences
	err := s.db.QueryRow(
		`SELECT server_id, consider_all_messages_public, anonymize_messages,
		        read_the_rules_consent, plan
		 FROM server_preferences WHERE server_id = ?`, serverID,
	).Scan(&p.ServerID, &p.ConsiderAllMessagesPublic, &p.AnonymizeMessages,
		&p.ReadTheRulesConsent, &p.Plan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get server preferences %d: %w", serverID, err)
	}
	return &p, nil
}

// SetServerPreferences creates or updates a server's visibility defaults.
func (s *Store) SetServerPreferences(p *ServerPreferences) error {
	if p.Plan == "" {
		p.Plan = "free"
	}
	_, err := s.db.Exec(
		`INSERT INTO server_preferences
		   (server_id, consider_all_messages_public, anonymize_messages, read_the_rules_consent, plan)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(server_id) DO UPDATE SET
		   consider_all_messages_public = excluded.consider_all_messages_public,
		   anonymize_messages = excluded.anonymize_messages,
		   read_the_rules_consent = excluded.read_the_rules_consent,
		   plan = excluded.plan`,
		p.ServerID, p.ConsiderAllMessagesPublic, p.AnonymizeMessages,
		p.ReadTheRulesConsent, p.Plan,
	)
	if err != nil {
		return fmt.Errorf("failed to set server preferences: %w", err)
	}
	return nil
}

// User server settings + consent cascade

// GetUserServerSettings returns one user's consent flags on one server, or
// (nil, nil) if the user never configured anything there.
func (s *Store) GetUserServerSettings(userID, serverID int64) (*UserServerSettings, error) {
	return getUserServerSettings(s.db, userID, serverID)
}

// querier covers *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func getUserServerSettings(q querier, userID, serverID int64) (*UserServerSettings, error) {
	var u UserServerSettings
	err := q.QueryRow(
		`SELECT user_id, server_id, message_indexing_disabled,
		        can_publicly_display_messages, api_calls_used
		 FROM user_server_settings WHERE user_id = ? AND server_id = ?`,
		userID, serverID,
	).Scan(&u.UserID, &u.ServerID, &u.MessageIndexingDisabled,
		&u.CanPubliclyDisplayMessages, &u.APICallsUsed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user server settings (%d, %d): %w", userID, serverID, err)
	}
	return &u, nil
}

// UpdateUserServerSettings persists consent flags for (user, server),
// enforcing the invariant that public display consent cannot coexist with
// disabled indexing. When the write transitions MessageIndexingDisabled from
// false/absent to true, every message by that author on that server is
// deleted in the same transaction. Returns the settings as persisted and the
// number of messages removed.
func (s *Store) UpdateUserServerSettings(settings *UserServerSettings) (*UserServerSettings, int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, 0, fmt.Errorf("begin settings update: %w", err)
	}
	defer tx.Rollback()

	existing, err := getUserServerSettings(tx, settings.UserID, settings.ServerID)
	if err != nil {
		return nil, 0, err
	}

	var old *consent.UserSettings
	if existing != nil {
		old = &consent.UserSettings{
			MessageIndexingDisabled:    existing.MessageIndexingDisabled,
			CanPubliclyDisplayMessages: existing.CanPubliclyDisplayMessages,
		}
	}
	normalized := consent.Normalize(consent.UserSettings{
		MessageIndexingDisabled:    settings.MessageIndexingDisabled,
		CanPubliclyDisplayMessages: settings.CanPubliclyDisplayMessages,
	})

	// The usage counter is owned by IncrementAPICallsUsed and
	// ResetAPICallsUsed; consent writes never modify it.
	updated := &UserServerSettings{
		UserID:                     settings.UserID,
		ServerID:                   settings.ServerID,
		MessageIndexingDisabled:    normalized.MessageIndexingDisabled,
		CanPubliclyDisplayMessages: normalized.CanPubliclyDisplayMessages,
	}
	if existing != nil {
		updated.APICallsUsed = existing.APICallsUsed
	}

	_, err = tx.Exec(
		`INSERT INTO user_server_settings
		   (user_id, server_id, message_indexing_disabled, can_publicly_display_messages, api_calls_used)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, server_id) DO UPDATE SET
		   message_indexing_disabled = excluded.message_indexing_disabled,
		   can_publicly_display_messages = excluded.can_publicly_display_messages`,
		updated.UserID, updated.ServerID, updated.MessageIndexingDisabled,
		updated.CanPubliclyDisplayMessages, updated.APICallsUsed,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to update user server settings: %w", err)
	}

	deleted := 0
	if consent.CascadeRequired(old, normalized) {
		deleted, err = deleteAuthorMessages(tx, updated.UserID, updated.ServerID)
		if err != nil {
			return nil, 0, fmt.Errorf("consent cascade for user %d on server %d: %w",
				updated.UserID, updated.ServerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit settings update: %w", err)
	}
	return updated, deleted, nil
}

// IncrementAPICallsUsed bumps the per-user usage counter on a server.
func (s *Store) IncrementAPICallsUsed(userID, serverID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO user_server_settings (user_id, server_id, api_calls_used)
		 VALUES (?, ?, 1)
		 ON CONFLICT(user_id, server_id) DO UPDATE SET
		   api_calls_used = api_calls_used + 1`,
		userID, serverID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment api calls used: %w", err)
	}
	return nil
}

// ResetAPICallsUsed zeroes the per-user usage counter on a server. A missing
// settings row already counts as zero and is left absent.
func (s *Store) ResetAPICallsUsed(userID, serverID int64) error {
	_, err := s.db.Exec(
		"UPDATE user_server_settings SET api_calls_used = 0 WHERE user_id = ? AND server_id = ?",
		userID, serverID,
	)
	if err != nil {
		return fmt.Errorf("failed to reset api calls used: %w", err)
	}
	return nil
}
