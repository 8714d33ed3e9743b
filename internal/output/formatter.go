package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kmorel/lantern"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatHuman Format = "human"
)

type Formatter struct {
	format Format
	out    io.Writer
	err    io.Writer
}

// NewFormatter creates a new output formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{
		format: format,
		out:    os.Stdout,
		err:    os.Stderr,
	}
}

// NewFormatterWithWriters creates a formatter with custom output writers for testability
func NewFormatterWithWriters(format Format, out, errW io.Writer) *Formatter {
	return &Formatter{
		format: format,
		out:    out,
		err:    errW,
	}
}

// IngestResult represents the result of a batch ingest operation
type IngestResult struct {
	Stored  int      `json:"stored"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// OutputIngestResult outputs the ingest result in the configured format
func (f *Formatter) OutputIngestResult(result *IngestResult) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(result)
	case FormatText:
		fmt.Fprintf(f.out, "stored=%d\n", result.Stored)
		fmt.Fprintf(f.out, "skipped=%d\n", result.Skipped)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Stored %d messages\n", result.Stored)
		if result.Skipped > 0 {
			fmt.Fprintf(f.out, "Skipped %d messages from opted-out authors\n", result.Skipped)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputMessage outputs one enriched message
func (f *Formatter) OutputMessage(m *lantern.EnrichedMessage) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(m)
	case FormatText:
		fmt.Fprintf(f.out, "id=%d\tchannel=%d\tpublic=%t\tredacted=%t\tauthor=%s\tcontent=%s\n",
			m.ID, m.ChannelID, m.Public, m.Redacted, authorName(m), m.Content)
		return nil
	case FormatHuman:
		f.printMessage(m)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputMessageList outputs a page of enriched messages
func (f *Formatter) OutputMessageList(messages []lantern.EnrichedMessage) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(messages)
	case FormatText:
		for i := range messages {
			m := &messages[i]
			fmt.Fprintf(f.out, "id=%d\tchannel=%d\tpublic=%t\tredacted=%t\tauthor=%s\tcontent=%s\n",
				m.ID, m.ChannelID, m.Public, m.Redacted, authorName(m), m.Content)
		}
		return nil
	case FormatHuman:
		if len(messages) == 0 {
			fmt.Fprintln(f.out, "No messages")
			return nil
		}
		fmt.Fprintf(f.out, "Messages (%d):\n\n", len(messages))
		for i := range messages {
			f.printMessage(&messages[i])
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

func (f *Formatter) printMessage(m *lantern.EnrichedMessage) {
	if m.Redacted {
		fmt.Fprintf(f.out, "ID: %d (redacted)\n", m.ID)
		fmt.Fprintln(f.out, "---")
		return
	}
	fmt.Fprintf(f.out, "ID: %d\n", m.ID)
	fmt.Fprintf(f.out, "Author: %s\n", authorName(m))
	if m.Channel != nil {
		fmt.Fprintf(f.out, "Channel: #%s\n", m.Channel.Name)
	}
	if m.Thread != nil {
		fmt.Fprintf(f.out, "Thread: %s\n", m.Thread.Name)
	}
	fmt.Fprintf(f.out, "Content: %s\n", truncate(m.Content, 300))
	if len(m.Attachments) > 0 {
		for _, a := range m.Attachments {
			fmt.Fprintf(f.out, "Attachment: %s (%s)\n", a.Filename, a.URL)
		}
	}
	if len(m.SolutionIDs) > 0 {
		fmt.Fprintf(f.out, "Solutions: %v\n", m.SolutionIDs)
	}
	fmt.Fprintln(f.out, "---")
}

// OutputConsentResult outputs the outcome of a consent settings update
func (f *Formatter) OutputConsentResult(settings *lantern.UserServerSettings, deleted int) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(map[string]interface{}{
			"settings":         settings,
			"messages_deleted": deleted,
		})
	case FormatText:
		fmt.Fprintf(f.out, "user=%d\tserver=%d\tindexing_disabled=%t\tpublic_display=%t\tdeleted=%d\n",
			settings.UserID, settings.ServerID, settings.MessageIndexingDisabled,
			settings.CanPubliclyDisplayMessages, deleted)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Updated consent for user %d on server %d\n", settings.UserID, settings.ServerID)
		fmt.Fprintf(f.out, "  indexing disabled: %t\n", settings.MessageIndexingDisabled)
		fmt.Fprintf(f.out, "  public display:    %t\n", settings.CanPubliclyDisplayMessages)
		if deleted > 0 {
			fmt.Fprintf(f.out, "Deleted %d messages\n", deleted)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputDeleteResult outputs the outcome of a delete operation
func (f *Formatter) OutputDeleteResult(kind string, count int) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(map[string]interface{}{
			"deleted": count,
			"kind":    kind,
		})
	case FormatText:
		fmt.Fprintf(f.out, "deleted=%d\tkind=%s\n", count, kind)
		return nil
	case FormatHuman:
		if count == 1 {
			fmt.Fprintf(f.out, "Deleted 1 %s\n", kind)
		} else {
			fmt.Fprintf(f.out, "Deleted %d %ss\n", count, kind)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// Error outputs an error message to stderr
func (f *Formatter) Error(format string, args ...interface{}) {
	fmt.Fprintf(f.err, format+"\n", args...)
}

// Warning outputs a warning message to stderr
func (f *Formatter) Warning(format string, args ...interface{}) {
	fmt.Fprintf(f.err, "Warning: "+format+"\n", args...)
}

func authorName(m *lantern.EnrichedMessage) string {
	if m.Author == nil {
		return ""
	}
	return m.Author.Name
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
