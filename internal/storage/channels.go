package storage

import (
	"database/sql"
	"fmt"
)

// Channel types mirror the source platform's numeric channel types.
const (
	ChannelTypeText               = 0
	ChannelTypeAnnouncement       = 5
	ChannelTypeAnnouncementThread = 10
	ChannelTypePublicThread       = 11
	ChannelTypePrivateThread      = 12
	ChannelTypeForum              = 15
)

type Channel struct {
	ID       int64
	ServerID int64
	Name     string
	Type     int
	ParentID *int64
}

type ChannelSettings struct {
	ChannelID                    int64
	IndexingEnabled              bool
	AutoThreadEnabled            bool
	MarkSolutionEnabled          bool
	SendMarkSolutionInstructions bool
	SolutionTagID                *int64
}

// UpsertChannel inserts or replaces a channel by id.
func (s *Store) UpsertChannel(c *Channel) error {
	_, err := s.db.Exec(
		`INSERT INTO channels (id, server_id, name, type, parent_id)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   server_id = excluded.server_id,
		   name = excluded.name,
		   type = excluded.type,
		   parent_id = excluded.parent_id`,
		c.ID, c.ServerID, c.Name, c.Type, c.ParentID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert channel %d: %w", c.ID, err)
	}
	return nil
}

// GetChannel returns a channel by id, or (nil, nil) if it is not indexed.
func (s *Store) GetChannel(channelID int64) (*Channel, error) {
	var c Channel
	err := s.db.QueryRow(
		"SELECT id, server_id, name, type, parent_id FROM channels WHERE id = ?",
		channelID,
	).Scan(&c.ID, &c.ServerID, &c.Name, &c.Type, &c.ParentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel %d: %w", channelID, err)
	}
	return &c, nil
}

// GetChannelChildren returns the direct child threads of a channel.
func (s *Store) GetChannelChildren(channelID int64) ([]Channel, error) {
	return channelChildren(s.db, channelID)
}

func channelChildren(q querier, channelID int64) ([]Channel, error) {
	rows, err := q.Query(
		"SELECT id, server_id, name, type, parent_id FROM channels WHERE parent_id = ? ORDER BY id ASC",
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel children: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var c Channel
		if err := rows.Scan(&c.ID, &c.ServerID, &c.Name, &c.Type, &c.ParentID); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

// GetChannelSettings returns a channel's settings, or (nil, nil) if it was
// never configured.
func (s *Store) GetChannelSettings(channelID int64) (*ChannelSettings, error) {
	var cs ChannelSettings
	err := s.db.QueryRow(
		`SELECT channel_id, indexing_enabled, auto_thread_enabled, mark_solution_enabled,
		        send_mark_solution_instructions, solution_tag_id
		 FROM channel_settings WHERE channel_id = ?`, channelID,
	).Scan(&cs.ChannelID, &cs.IndexingEnabled, &cs.AutoThreadEnabled,
		&cs.MarkSolutionEnabled, &cs.SendMarkSolutionInstructions, &cs.SolutionTagID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel settings %d: %w", channelID, err)
	}
	return &cs, nil
}

// SetChannelSettings creates the settings row lazily on first write and
// replaces it on later writes. The channel itself must exist.
func (s *Store) SetChannelSettings(cs *ChannelSettings) error {
	channel, err := s.GetChannel(cs.ChannelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return fmt.Errorf("channel %d: %w", cs.ChannelID, ErrNotFound)
	}

	_, err = s.db.Exec(
		`INSERT INTO channel_settings
		   (channel_id, indexing_enabled, auto_thread_enabled, mark_solution_enabled,
		    send_mark_solution_instructions, solution_tag_id)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(channel_id) DO UPDATE SET
		   indexing_enabled = excluded.indexing_enabled,
		   auto_thread_enabled = excluded.auto_thread_enabled,
		   mark_solution_enabled = excluded.mark_solution_enabled,
		   send_mark_solution_instructions = excluded.send_mark_solution_instructions,
		   solution_tag_id = excluded.solution_tag_id`,
		cs.ChannelID, cs.IndexingEnabled, cs.AutoThreadEnabled,
		cs.MarkSolutionEnabled, cs.SendMarkSolutionInstructions, cs.SolutionTagID,
	)
	if err != nil {
		return fmt.Errorf("failed to set channel settings: %w", err)
	}
	return nil
}

// DeleteChannelTree removes a channel, all descendant threads, their
// settings, and every message (with attachments and reactions) inside them.
// The traversal is an iterative worklist over the parent-pointer adjacency:
// threads observed so far form a one-level tree, but the worklist bounds
// depth regardless. Deletion runs leaves-first so no child ever outlives its
// parent's removal step. Returns the number of channels deleted.
func (s *Store) DeleteChannelTree(channelID int64) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin channel delete: %w", err)
	}
	defer tx.Rollback()

	var root int
	err = tx.QueryRow("SELECT 1 FROM channels WHERE id = ?", channelID).Scan(&root)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("channel %d: %w", channelID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("check channel %d: %w", channelID, err)
	}

	// Collect the whole subtree breadth-first. The seen set keeps the walk
	// finite even if corrupted parent pointers form a cycle.
	ids := []int64{channelID}
	seen := map[int64]bool{channelID: true}
	for i := 0; i < len(ids); i++ {
		children, err := channelChildren(tx, ids[i])
		if err != nil {
			return 0, err
		}
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			ids = append(ids, c.ID)
		}
	}

	// Delete leaves first.
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		if err := deleteMessagesWhere(tx, "channel_id = ?", id); err != nil {
			return 0, fmt.Errorf("delete messages in channel %d: %w", id, err)
		}
		if _, err := tx.Exec("DELETE FROM channel_settings WHERE channel_id = ?", id); err != nil {
			return 0, fmt.Errorf("failed to delete settings for channel %d: %w", id, err)
		}
		if _, err := tx.Exec("DELETE FROM channels WHERE id = ?", id); err != nil {
			return 0, fmt.Errorf("failed to delete channel %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit channel delete: %w", err)
	}
	return len(ids), nil
}

// LatestChannelMessage returns the newest message in a channel, or
// (nil, nil) if the channel is empty. Recency is the raw numeric value of
// the snowflake id: ids are time-ordered at creation and unique, so no
// secondary timestamp is needed and ties are impossible.
func (s *Store) LatestChannelMessage(channelID int64) (*Message, error) {
	var m Message
	err := s.db.QueryRow(
		`SELECT id, author_id, server_id, channel_id, parent_channel_id,
		        child_thread_id, question_id, content
		 FROM messages WHERE channel_id = ?
		 ORDER BY id DESC LIMIT 1`, channelID,
	).Scan(&m.ID, &m.AuthorID, &m.ServerID, &m.ChannelID,
		&m.ParentChannelID, &m.ChildThreadID, &m.QuestionID, &m.Content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest message in channel %d: %w", channelID, err)
	}
	return &m, nil
}
