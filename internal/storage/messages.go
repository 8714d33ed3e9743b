package storage

import (
	"database/sql"
	"fmt"

	"github.com/kmorel/lantern/internal/consent"
)

type Message struct {
	ID              int64
	AuthorID        int64
	ServerID        int64
	ChannelID       int64
	ParentChannelID *int64
	ChildThreadID   *int64
	QuestionID      *int64
	Content         string
}

type Attachment struct {
	ID          int64
	MessageID   int64
	Filename    string
	ContentType string
	Size        int64
	StorageID   string
}

type Emoji struct {
	ID   int64
	Name string
}

type Reaction struct {
	MessageID int64
	UserID    int64
	Emoji     Emoji
}

// UpsertMessage writes a message and reconciles its child collections in one
// transaction. A nil attachments or reactions pointer means "no information
// supplied, leave the stored set alone"; a pointer to an empty slice means
// "the set is now empty" and wipes it. Reactions whose emoji id is zero carry
// no persistable identity and are skipped. Unless ignoreChecks is set, the
// consent gate rejects authors on the ignore list or with indexing disabled.
func (s *Store) UpsertMessage(m *Message, attachments *[]Attachment, reactions *[]Reaction, ignoreChecks bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin message upsert: %w", err)
	}
	defer tx.Rollback()

	if !ignoreChecks {
		if err := gateAuthor(tx, m.AuthorID, m.ServerID); err != nil {
			return err
		}
	}

	if err := upsertMessageRow(tx, m); err != nil {
		return err
	}
	if attachments != nil {
		if err := replaceAttachments(tx, m.ID, *attachments); err != nil {
			return err
		}
	}
	if reactions != nil {
		if err := replaceReactions(tx, m.ID, *reactions); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message upsert: %w", err)
	}
	return nil
}

// gateAuthor applies the shared consent precondition inside the transaction.
func gateAuthor(tx *sql.Tx, authorID, serverID int64) error {
	var one int
	err := tx.QueryRow("SELECT 1 FROM ignored_accounts WHERE id = ?", authorID).Scan(&one)
	ignored := err == nil
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("check ignored account %d: %w", authorID, err)
	}

	settings, err := getUserServerSettings(tx, authorID, serverID)
	if err != nil {
		return err
	}
	var cs *consent.UserSettings
	if settings != nil {
		cs = &consent.UserSettings{
			MessageIndexingDisabled:    settings.MessageIndexingDisabled,
			CanPubliclyDisplayMessages: settings.CanPubliclyDisplayMessages,
		}
	}
	if err := consent.Gate(ignored, cs); err != nil {
		return fmt.Errorf("upsert message by author %d: %w", authorID, err)
	}
	return nil
}

func upsertMessageRow(tx *sql.Tx, m *Message) error {
	_, err := tx.Exec(
		`INSERT INTO messages
		   (id, author_id, server_id, channel_id, parent_channel_id, child_thread_id, question_id, content)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   author_id = excluded.author_id,
		   server_id = excluded.server_id,
		   channel_id = excluded.channel_id,
		   parent_channel_id = excluded.parent_channel_id,
		   child_thread_id = excluded.child_thread_id,
		   question_id = excluded.question_id,
		   content = excluded.content`,
		m.ID, m.AuthorID, m.ServerID, m.ChannelID,
		m.ParentChannelID, m.ChildThreadID, m.QuestionID, m.Content,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert message %d: %w", m.ID, err)
	}
	return nil
}

// replaceAttachments implements full-replace semantics: the incoming list is
// the complete current set, mirroring the source platform's snapshots.
func replaceAttachments(tx *sql.Tx, messageID int64, attachments []Attachment) error {
	if _, err := tx.Exec("DELETE FROM attachments WHERE message_id = ?", messageID); err != nil {
		return fmt.Errorf("failed to clear attachments for message %d: %w", messageID, err)
	}
	for _, a := range attachments {
		_, err := tx.Exec(
			`INSERT INTO attachments (id, message_id, filename, content_type, size, storage_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, messageID, a.Filename, a.ContentType, a.Size, a.StorageID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert attachment %d: %w", a.ID, err)
		}
	}
	return nil
}

// replaceReactions implements the same full-replace semantics, deduping each
// reaction's embedded emoji with an explicit get-then-insert so behavior does
// not depend on unique-constraint error shapes. Emojis are never updated
// after creation and never garbage-collected.
func replaceReactions(tx *sql.Tx, messageID int64, reactions []Reaction) error {
	if _, err := tx.Exec("DELETE FROM reactions WHERE message_id = ?", messageID); err != nil {
		return fmt.Errorf("failed to clear reactions for message %d: %w", messageID, err)
	}
	for _, r := range reactions {
		if r.Emoji.ID == 0 {
			// Unicode-only emoji: no persistable identity.
			continue
		}
		var one int
		err := tx.QueryRow("SELECT 1 FROM emojis WHERE id = ?", r.Emoji.ID).Scan(&one)
		if err == sql.ErrNoRows {
			if _, err := tx.Exec("INSERT INTO emojis (id, name) VALUES (?, ?)", r.Emoji.ID, r.Emoji.Name); err != nil {
				return fmt.Errorf("failed to insert emoji %d: %w", r.Emoji.ID, err)
			}
		} else if err != nil {
			return fmt.Errorf("check emoji %d: %w", r.Emoji.ID, err)
		}

		_, err = tx.Exec(
			"INSERT OR IGNORE INTO reactions (message_id, user_id, emoji_id) VALUES (?, ?, ?)",
			messageID, r.UserID, r.Emoji.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reaction: %w", err)
		}
	}
	return nil
}

// GetMessage returns a message by id, or (nil, nil) if it is not indexed.
func (s *Store) GetMessage(messageID int64) (*Message, error) {
	return getMessage(s.db, messageID)
}

func getMessage(q querier, messageID int64) (*Message, error) {
	var m Message
	err := q.QueryRow(
		`SELECT id, author_id, server_id, channel_id, parent_channel_id,
		        child_thread_id, question_id, content
		 FROM messages WHERE id = ?`, messageID,
	).Scan(&m.ID, &m.AuthorID, &m.ServerID, &m.ChannelID,
		&m.ParentChannelID, &m.ChildThreadID, &m.QuestionID, &m.Content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message %d: %w", messageID, err)
	}
	return &m, nil
}

// GetChannelMessages returns messages in a channel ordered oldest first by
// snowflake value.
func (s *Store) GetChannelMessages(channelID int64, limit, offset int) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, author_id, server_id, channel_id, parent_channel_id,
		        child_thread_id, question_id, content
		 FROM messages WHERE channel_id = ?
		 ORDER BY id ASC
		 LIMIT ? OFFSET ?`,
		channelID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetAuthorMessages returns every message by an author on one server.
func (s *Store) GetAuthorMessages(authorID, serverID int64) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, author_id, server_id, channel_id, parent_channel_id,
		        child_thread_id, question_id, content
		 FROM messages WHERE author_id = ? AND server_id = ?
		 ORDER BY id ASC`,
		authorID, serverID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get author messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.AuthorID, &m.ServerID, &m.ChannelID,
			&m.ParentChannelID, &m.ChildThreadID, &m.QuestionID, &m.Content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DeleteMessage removes a message and its attachments and reactions, in that
// order, within one transaction. Deleting an unknown id is a no-op.
func (s *Store) DeleteMessage(messageID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin message delete: %w", err)
	}
	defer tx.Rollback()

	if err := deleteMessageRows(tx, messageID); err != nil {
		return err
	}
	return tx.Commit()
}

// deleteMessageRows is the shared single-message cascade: attachments first,
// then reactions, then the message row. Emoji rows are shared and stay.
func deleteMessageRows(tx *sql.Tx, messageID int64) error {
	if _, err := tx.Exec("DELETE FROM attachments WHERE message_id = ?", messageID); err != nil {
		return fmt.Errorf("failed to delete attachments for message %d: %w", messageID, err)
	}
	if _, err := tx.Exec("DELETE FROM reactions WHERE message_id = ?", messageID); err != nil {
		return fmt.Errorf("failed to delete reactions for message %d: %w", messageID, err)
	}
	if _, err := tx.Exec("DELETE FROM messages WHERE id = ?", messageID); err != nil {
		return fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}
	return nil
}

// deleteMessagesWhere cascades the per-message deletion over every message
// matching the predicate, returning how many were removed.
func deleteMessagesWhere(tx *sql.Tx, where string, args ...any) (err error) {
	_, err = deleteMessagesWhereCount(tx, where, args...)
	return err
}

func deleteMessagesWhereCount(tx *sql.Tx, where string, args ...any) (int, error) {
	rows, err := tx.Query("SELECT id FROM messages WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to list messages for deletion: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan message id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := deleteMessageRows(tx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func deleteAuthorMessages(tx *sql.Tx, authorID, serverID int64) (int, error) {
	return deleteMessagesWhereCount(tx, "author_id = ? AND server_id = ?", authorID, serverID)
}

// SetSolution marks solutionID as the accepted answer to questionID, or
// clears the question's solution when solutionID is nil. All prior holders
// of the link are cleared first; there should be at most one, but the
// implementation does not assume it. A message may be marked as its own
// solution; this layer performs no cycle check.
func (s *Store) SetSolution(questionID int64, solutionID *int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin set solution: %w", err)
	}
	defer tx.Rollback()

	question, err := getMessage(tx, questionID)
	if err != nil {
		return err
	}
	if question == nil {
		return fmt.Errorf("question message %d: %w", questionID, ErrNotFound)
	}

	_, err = tx.Exec(
		"UPDATE messages SET question_id = NULL WHERE question_id = ? AND server_id = ?",
		questionID, question.ServerID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear prior solutions for question %d: %w", questionID, err)
	}

	if solutionID != nil {
		solution, err := getMessage(tx, *solutionID)
		if err != nil {
			return err
		}
		if solution == nil {
			return fmt.Errorf("solution message %d: %w", *solutionID, ErrNotFound)
		}
		if solution.ServerID != question.ServerID {
			return fmt.Errorf("solution %d for question %d: %w", *solutionID, questionID, ErrCrossServerSolution)
		}
		if _, err := tx.Exec("UPDATE messages SET question_id = ? WHERE id = ?", questionID, *solutionID); err != nil {
			return fmt.Errorf("failed to set solution link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set solution: %w", err)
	}
	return nil
}

// GetSolutions returns the messages marked as solutions to a question. By
// invariant there is at most one, but readers get whatever is stored.
func (s *Store) GetSolutions(questionID int64) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, author_id, server_id, channel_id, parent_channel_id,
		        child_thread_id, question_id, content
		 FROM messages WHERE question_id = ?
		 ORDER BY id ASC`, questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get solutions: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetAttachments returns a message's attachments.
func (s *Store) GetAttachments(messageID int64) ([]Attachment, error) {
	rows, err := s.db.Query(
		`SELECT id, message_id, filename, content_type, size, storage_id
		 FROM attachments WHERE message_id = ? ORDER BY id ASC`, messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	defer rows.Close()

	var attachments []Attachment
	for rows.Next() {
		var a Attachment
		var contentType, storageID sql.NullString
		if err := rows.Scan(&a.ID, &a.MessageID, &a.Filename, &contentType, &a.Size, &storageID); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		a.ContentType = contentType.String
		a.StorageID = storageID.String
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

// GetReactions returns a message's reactions with their emoji hydrated.
func (s *Store) GetReactions(messageID int64) ([]Reaction, error) {
	rows, err := s.db.Query(
		`SELECT r.message_id, r.user_id, e.id, e.name
		 FROM reactions r
		 JOIN emojis e ON e.id = r.emoji_id
		 WHERE r.message_id = ?
		 ORDER BY e.id, r.user_id`, messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get reactions: %w", err)
	}
	defer rows.Close()

	var reactions []Reaction
	for rows.Next() {
		var r Reaction
		if err := rows.Scan(&r.MessageID, &r.UserID, &r.Emoji.ID, &r.Emoji.Name); err != nil {
			return nil, fmt.Errorf("failed to scan reaction: %w", err)
		}
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}

// GetEmoji returns an emoji by id, or (nil, nil) if absent.
func (s *Store) GetEmoji(emojiID int64) (*Emoji, error) {
	var e Emoji
	err := s.db.QueryRow("SELECT id, name FROM emojis WHERE id = ?", emojiID).Scan(&e.ID, &e.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get emoji %d: %w", emojiID, err)
	}
	return &e, nil
}

// MessageExists reports whether a message id is indexed.
func (s *Store) MessageExists(messageID int64) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM messages WHERE id = ?", messageID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check message %d: %w", messageID, err)
	}
	return true, nil
}
