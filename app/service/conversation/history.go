package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"donna/app/storage/recordstore"

	"github.com/samber/do"
	"github.com/samber/oops"
)

const conversationsCollection = "conversations"

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

type Turn struct {
	Speaker   Speaker
	Text      string
	Timestamp time.Time
}

// Log is the append-only per-user conversation record. The pipeline only
// ever reads bounded tails of it.
type Log struct {
	store recordstore.Store
}

func New(di *do.Injector) (*Log, error) {
	return NewLog(do.MustInvoke[recordstore.Store](di)), nil
}

func NewLog(store recordstore.Store) *Log {
	return &Log{store: store}
}

func (l *Log) Append(ctx context.Context, userID string, speaker Speaker, text string) error {
	err := l.store.Append(ctx, conversationsCollection, recordstore.Record{
		"user_id":   userID,
		"speaker":   string(speaker),
		"text":      text,
		"timestamp": time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		return oops.Wrapf(err, "failed to append conversation turn")
	}

	return nil
}

// Tail returns the most recent n turns in chronological order.
func (l *Log) Tail(ctx context.Context, userID string, n int) ([]Turn, error) {
	records, err := l.store.Get(ctx, conversationsCollection, userID)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to load conversation")
	}

	turns := make([]Turn, 0, len(records))
	for _, rec := range records {
		ts, _ := time.Parse(time.RFC3339Nano, rec["timestamp"])
		turns = append(turns, Turn{
			Speaker:   Speaker(rec["speaker"]),
			Text:      rec["text"],
			Timestamp: ts,
		})
	}

	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	return turns, nil
}

// Format renders turns for a prompt, truncating each text to maxLen runes.
func Format(turns []Turn, maxLen int) string {
	if len(turns) == 0 {
		return ""
	}

	var builder strings.Builder

	for _, turn := range turns {
		role := "User"
		if turn.Speaker == SpeakerAssistant {
			role = "Assistant"
		}

		text := turn.Text
		if maxLen > 0 {
			if runes := []rune(text); len(runes) > maxLen {
				text = string(runes[:maxLen])
			}
		}

		builder.WriteString(fmt.Sprintf("%s: %s\n", role, text))
	}

	return strings.TrimRight(builder.String(), "\n")
}

// LastAssistantText returns the latest assistant turn in the tail, if any.
func LastAssistantText(turns []Turn) (string, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Speaker == SpeakerAssistant {
			return turns[i].Text, true
		}
	}

	return "", false
}
