package consent

import (
	"errors"
	"testing"
)

func TestIsMessagePublic(t *testing.T) {
	tests := []struct {
		name   string
		prefs  *ServerPreferences
		author *UserSettings
		want   bool
	}{
		{"both absent", nil, nil, false},
		{"server opts everything public", &ServerPreferences{ConsiderAllMessagesPublic: true}, nil, true},
		{"author consented", nil, &UserSettings{CanPubliclyDisplayMessages: true}, true},
		{"author present but no consent", nil, &UserSettings{}, false},
		{"server prefs present but off", &ServerPreferences{}, &UserSettings{}, false},
		{"both granted", &ServerPreferences{ConsiderAllMessagesPublic: true}, &UserSettings{CanPubliclyDisplayMessages: true}, true},
	}
	for _, tt := range tests {
		if got := IsMessagePublic(tt.prefs, tt.author); got != tt.want {
			t.Errorf("%s: IsMessagePublic = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestShouldAnonymize(t *testing.T) {
	if ShouldAnonymize(nil) {
		t.Error("nil prefs should not anonymize")
	}
	if ShouldAnonymize(&ServerPreferences{}) {
		t.Error("default prefs should not anonymize")
	}
	if !ShouldAnonymize(&ServerPreferences{AnonymizeMessages: true}) {
		t.Error("anonymize flag should anonymize")
	}
	// Orthogonal to publicity: public servers can still anonymize.
	if !ShouldAnonymize(&ServerPreferences{ConsiderAllMessagesPublic: true, AnonymizeMessages: true}) {
		t.Error("public + anonymize should anonymize")
	}
}

func TestNormalizeForcesConsentInvariant(t *testing.T) {
	got := Normalize(UserSettings{MessageIndexingDisabled: true, CanPubliclyDisplayMessages: true})
	if got.CanPubliclyDisplayMessages {
		t.Error("public display must be forced off when indexing is disabled")
	}
	if !got.MessageIndexingDisabled {
		t.Error("indexing-disabled flag must survive normalization")
	}

	got = Normalize(UserSettings{CanPubliclyDisplayMessages: true})
	if !got.CanPubliclyDisplayMessages {
		t.Error("public display must be preserved when indexing is enabled")
	}
}

func TestCascadeRequired(t *testing.T) {
	on := UserSettings{MessageIndexingDisabled: true}
	off := UserSettings{}

	if !CascadeRequired(nil, on) {
		t.Error("absent→disabled must cascade")
	}
	if !CascadeRequired(&off, on) {
		t.Error("enabled→disabled must cascade")
	}
	if CascadeRequired(&on, on) {
		t.Error("re-disabling must not cascade")
	}
	if CascadeRequired(&on, off) {
		t.Error("re-enabling must not cascade")
	}
	if CascadeRequired(&off, off) {
		t.Error("no-op write must not cascade")
	}
}

func TestGate(t *testing.T) {
	if err := Gate(true, nil); !errors.Is(err, ErrAuthorIgnored) {
		t.Errorf("ignored author: got %v, want ErrAuthorIgnored", err)
	}
	if err := Gate(false, &UserSettings{MessageIndexingDisabled: true}); !errors.Is(err, ErrIndexingDisabled) {
		t.Errorf("indexing disabled: got %v, want ErrIndexingDisabled", err)
	}
	if err := Gate(false, nil); err != nil {
		t.Errorf("unconfigured author: got %v, want nil", err)
	}
	if err := Gate(false, &UserSettings{CanPubliclyDisplayMessages: true}); err != nil {
		t.Errorf("consenting author: got %v, want nil", err)
	}
	// Ignore list wins over settings.
	if err := Gate(true, &UserSettings{MessageIndexingDisabled: true}); !errors.Is(err, ErrAuthorIgnored) {
		t.Errorf("ignored + disabled: got %v, want ErrAuthorIgnored", err)
	}
}

func TestPseudonymStable(t *testing.T) {
	a := Pseudonym(123456789)
	b := Pseudonym(123456789)
	if a != b {
		t.Errorf("pseudonym not stable: %q vs %q", a, b)
	}
	if a == Pseudonym(987654321) {
		t.Error("distinct authors should almost never collide on small inputs")
	}
	if a == "" {
		t.Error("pseudonym should not be empty")
	}
}
