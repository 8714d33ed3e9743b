// Package consent holds the pure decision logic for message publication:
// whether a message may be shown publicly, whether it must be anonymized,
// whether an author's messages may be written at all, and when a consent
// change must cascade into message deletion. Nothing here touches storage.
package consent

import "errors"

var (
	// ErrAuthorIgnored rejects writes for accounts on the permanent ignore list.
	ErrAuthorIgnored = errors.New("author is on the ignore list")

	// ErrIndexingDisabled rejects writes for authors who opted out of indexing
	// on the target server.
	ErrIndexingDisabled = errors.New("author has message indexing disabled")
)

// ServerPreferences are the server-wide visibility defaults. A nil pointer
// means the server was never configured.
type ServerPreferences struct {
	ConsiderAllMessagesPublic bool
	AnonymizeMessages         bool
	ReadTheRulesConsent       bool
}

// UserSettings are one user's consent flags on one server. A nil pointer
// means the user never configured anything there, which is the common case.
type UserSettings struct {
	MessageIndexingDisabled    bool
	CanPubliclyDisplayMessages bool
}

// IsMessagePublic reports whether a message by an author with the given
// settings may be displayed publicly. Absent records resolve to private.
func IsMessagePublic(prefs *ServerPreferences, author *UserSettings) bool {
	if prefs != nil && prefs.ConsiderAllMessagesPublic {
		return true
	}
	return author != nil && author.CanPubliclyDisplayMessages
}

// ShouldAnonymize reports whether author identity must be replaced with a
// pseudonym. Anonymization is orthogonal to publicity: a message can be
// public and anonymous at the same time.
func ShouldAnonymize(prefs *ServerPreferences) bool {
	return prefs != nil && prefs.AnonymizeMessages
}

// Normalize forces the invariant that public display consent can never be
// held while indexing is disabled, regardless of what the caller supplied.
// A conflicting request is corrected, not rejected.
func Normalize(s UserSettings) UserSettings {
	if s.MessageIndexingDisabled {
		s.CanPubliclyDisplayMessages = false
	}
	return s
}

// CascadeRequired reports whether persisting updated settings must also
// delete the author's messages on that server. Only the false/absent→true
// transition of MessageIndexingDisabled fires the cascade; re-disabling is a
// no-op and re-enabling never resurrects anything.
func CascadeRequired(old *UserSettings, updated UserSettings) bool {
	if !updated.MessageIndexingDisabled {
		return false
	}
	return old == nil || !old.MessageIndexingDisabled
}

// Gate is the write-path precondition shared by the upsert reconciler and
// the consent cascade. It returns ErrAuthorIgnored or ErrIndexingDisabled
// when the author must not have messages stored, nil otherwise.
func Gate(ignored bool, author *UserSettings) error {
	if ignored {
		return ErrAuthorIgnored
	}
	if author != nil && author.MessageIndexingDisabled {
		return ErrIndexingDisabled
	}
	return nil
}
