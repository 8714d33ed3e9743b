package lantern

import (
	"github.com/kmorel/lantern/internal/mentions"
)

// EngineConfig configures the lantern consent/indexing engine.
type EngineConfig struct {
	DBPath      string
	SiteBaseURL string // base URL for internal routes in rendered links
	CDNBaseURL  string // base URL for attachment blob resolution
	Blobs       BlobResolver
}

// BlobResolver maps a stored attachment reference to a fetchable URL.
type BlobResolver interface {
	AttachmentURL(a Attachment) string
}

// Server is an indexed Discord server.
type Server struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// DiscordAccount is an indexed Discord user.
type DiscordAccount struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Channel is an indexed channel or thread. ParentID is set for threads.
type Channel struct {
	ID       int64  `json:"id"`
	ServerID int64  `json:"server_id"`
	Name     string `json:"name"`
	Type     int    `json:"type"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// ChannelSettings holds per-channel indexing and helper flags. Created
// lazily with defaults on the first configuration write.
type ChannelSettings struct {
	ChannelID                    int64  `json:"channel_id"`
	IndexingEnabled              bool   `json:"indexing_enabled"`
	AutoThreadEnabled            bool   `json:"auto_thread_enabled"`
	MarkSolutionEnabled          bool   `json:"mark_solution_enabled"`
	SendMarkSolutionInstructions bool   `json:"send_mark_solution_instructions"`
	SolutionTagID                *int64 `json:"solution_tag_id,omitempty"`
}

// ServerPreferences holds server-wide visibility defaults and plan data.
type ServerPreferences struct {
	ServerID                  int64  `json:"server_id"`
	ConsiderAllMessagesPublic bool   `json:"consider_all_messages_public"`
	AnonymizeMessages         bool   `json:"anonymize_messages"`
	ReadTheRulesConsent       bool   `json:"read_the_rules_consent"`
	Plan                      string `json:"plan,omitempty"`
}

// UserServerSettings holds one user's consent flags on one server.
// CanPubliclyDisplayMessages can never be true while
// MessageIndexingDisabled is true; every write path enforces this.
type UserServerSettings struct {
	UserID                     int64 `json:"user_id"`
	ServerID                   int64 `json:"server_id"`
	MessageIndexingDisabled    bool  `json:"message_indexing_disabled"`
	CanPubliclyDisplayMessages bool  `json:"can_publicly_display_messages"`
	APICallsUsed               int   `json:"api_calls_used,omitempty"`
}

// Message is one indexed Discord message. QuestionID, when set, marks this
// message as the accepted solution to the referenced question message.
type Message struct {
	ID              int64  `json:"id"`
	AuthorID        int64  `json:"author_id"`
	ServerID        int64  `json:"server_id"`
	ChannelID       int64  `json:"channel_id"`
	ParentChannelID *int64 `json:"parent_channel_id,omitempty"`
	ChildThreadID   *int64 `json:"child_thread_id,omitempty"`
	QuestionID      *int64 `json:"question_id,omitempty"`
	Content         string `json:"content"`
}

// Attachment belongs to exactly one message; the set of a message's
// attachments is always replaced whole on upsert.
type Attachment struct {
	ID          int64  `json:"id"`
	MessageID   int64  `json:"message_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	StorageID   string `json:"storage_id,omitempty"`
}

// Emoji is a globally deduplicated emoji record. ID zero means the emoji is
// unicode-only and carries no persistable identity.
type Emoji struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Reaction struct {
	MessageID int64 `json:"message_id"`
	UserID    int64 `json:"user_id"`
	Emoji     Emoji `json:"emoji"`
}

// MessageUpsert is one message plus optional child-collection snapshots.
// A nil Attachments or Reactions pointer means "no information supplied";
// a pointer to an empty slice means "the set is now empty".
type MessageUpsert struct {
	Message     Message       `json:"message"`
	Attachments *[]Attachment `json:"attachments,omitempty"`
	Reactions   *[]Reaction   `json:"reactions,omitempty"`
}

// UpsertOptions tweaks a single-message upsert.
type UpsertOptions struct {
	// IgnoreChecks skips the consent gate; used by trusted backfills only.
	IgnoreChecks bool
}

// BatchResult summarizes a batch upsert.
type BatchResult struct {
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"` // consent-gated items, filtered not failed
}

// MessageAuthor is the display identity attached to an enriched message.
// For anonymized servers it is a stable pseudonym and URL is empty.
type MessageAuthor struct {
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	URL       string `json:"url,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

// EnrichedAttachment is an attachment with its blob reference resolved.
type EnrichedAttachment struct {
	Attachment
	URL string `json:"url,omitempty"`
}

// EnrichedMessage is the read-side view of one message. When the caller is
// not privileged to see a private message, a fully-redacted stand-in is
// returned instead of omitting the row, so list ordering stays stable.
type EnrichedMessage struct {
	Message
	Public      bool                 `json:"public"`
	Redacted    bool                 `json:"redacted,omitempty"`
	Anonymized  bool                 `json:"anonymized,omitempty"`
	Author      *MessageAuthor       `json:"author,omitempty"`
	Attachments []EnrichedAttachment `json:"attachments,omitempty"`
	Reactions   []Reaction           `json:"reactions,omitempty"`
	SolutionIDs []int64              `json:"solution_ids,omitempty"`
	Solutions   []EnrichedMessage    `json:"solutions,omitempty"`
	Server      *Server              `json:"server,omitempty"`
	Channel     *Channel             `json:"channel,omitempty"`
	Thread      *Channel             `json:"thread,omitempty"`
	Mentions    *mentions.Metadata   `json:"mentions,omitempty"`
}
