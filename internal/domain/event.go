package domain

import "time"

// Event is a single comment delivered by the feed.
type Event struct {
	ID            string
	Body          string
	Author        string
	AttachmentURL string
	CreatedAt     time.Time
}

// Tenant returns the identity rate limits are applied against.
func (e Event) Tenant() string {
	if e.Author == "" {
		return AnonymousTenant
	}
	return e.Author
}

// AnonymousTenant is used for events without an author.
const AnonymousTenant = "anonymous"

// Instruction is the bounded free-text edit request extracted from a comment.
type Instruction string

// Image is an in-memory binary artifact with its MIME type.
type Image struct {
	Data []byte
	MIME string
}

// Empty reports whether the image carries no bytes.
func (i Image) Empty() bool {
	return len(i.Data) == 0
}
