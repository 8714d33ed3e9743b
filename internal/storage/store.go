package storage

// Storer defines the storage interface for lantern's data layer.
type Storer interface {
	Close() error

	// Servers
	UpsertServer(server *Server) error
	GetServer(serverID int64) (*Server, error)
	GetServerPreferences(serverID int64) (*ServerPreferences, error)
	SetServerPreferences(p *ServerPreferences) error

	// Accounts
	UpsertAccount(account *DiscordAccount) error
	GetAccount(accountID int64) (*DiscordAccount, error)
	IgnoreAccount(accountID int64) error
	IsAccountIgnored(accountID int64) (bool, error)

	// Consent
	GetUserServerSettings(userID, serverID int64) (*UserServerSettings, error)
	UpdateUserServerSettings(settings *UserServerSettings) (*UserServerSettings, int, error)
	IncrementAPICallsUsed(userID, serverID int64) error
	ResetAPICallsUsed(userID, serverID int64) error

	// Channels
	UpsertChannel(c *Channel) error
	GetChannel(channelID int64) (*Channel, error)
	GetChannelChildren(channelID int64) ([]Channel, error)
	GetChannelSettings(channelID int64) (*ChannelSettings, error)
	SetChannelSettings(cs *ChannelSettings) error
	DeleteChannelTree(channelID int64) (int, error)
	LatestChannelMessage(channelID int64) (*Message, error)

	// Messages
	UpsertMessage(m *Message, attachments *[]Attachment, reactions *[]Reaction, ignoreChecks bool) error
	GetMessage(messageID int64) (*Message, error)
	MessageExists(messageID int64) (bool, error)
	GetChannelMessages(channelID int64, limit, offset int) ([]Message, error)
	GetAuthorMessages(authorID, serverID int64) ([]Message, error)
	DeleteMessage(messageID int64) error

	// Solutions
	SetSolution(questionID int64, solutionID *int64) error
	GetSolutions(questionID int64) ([]Message, error)

	// Message children
	GetAttachments(messageID int64) ([]Attachment, error)
	GetReactions(messageID int64) ([]Reaction, error)
	GetEmoji(emojiID int64) (*Emoji, error)
}

var _ Storer = (*Store)(nil)
