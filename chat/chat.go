// Package chat declares what the media bot needs from the chat platform client.
package chat

import "context"

// Formatting of outgoing text
type Formatting string

const (
	FormattingNone     Formatting = ""
	FormattingHTML     Formatting = "HTML"
	FormattingMarkdown Formatting = "Markdown"
)

// Identity is the bot's own account
type Identity struct {
	ID          int64
	Username    string
	DisplayName string
}

// File is the attachment metadata of a message, as delivered by the platform
type File struct {
	// FileID is the raw, unstable platform identifier
	FileID   string
	Name     string
	Size     int64
	Kind     string
	MimeType string
	// Caption is the caption flattened to HTML markup
	Caption string
}

type Message struct {
	ID     int
	ChatID int64
	Empty  bool
	File   *File
}

// Messenger sends messages and knows who the bot is
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, formatting Formatting) error
	Self(ctx context.Context) (Identity, error)
}

// History fetches messages of a chat by id. Messages that no longer exist come back with Empty set.
type History interface {
	FetchMessages(ctx context.Context, chatID int64, ids []int) ([]Message, error)
}
