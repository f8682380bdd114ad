package model

// Reserved provider label IDs.
const (
	LabelUnread  = "UNREAD"
	LabelStarred = "STARRED"
	LabelInbox   = "INBOX"
	LabelSent    = "SENT"
)

// Message is the normalized representation of a provider message.
type Message struct {
	// ID is the provider's opaque message identifier.
	ID string `json:"id"`

	// ThreadID groups the message with the rest of its conversation.
	ThreadID string `json:"threadId"`

	// LabelIDs holds the provider labels applied to the message.
	LabelIDs []string `json:"labelIds"`

	// Snippet is the provider-generated plain-text preview.
	Snippet string `json:"snippet"`

	// InternalDate is the epoch-millisecond receive time, as a string.
	InternalDate string `json:"internalDate"`

	// Headers maps lower-cased allow-listed header names to their values.
	Headers map[string]string `json:"headers"`

	// Sender is parsed from the from header.
	Sender Sender `json:"sender"`

	IsUnread  bool `json:"isUnread"`
	IsStarred bool `json:"isStarred"`
	IsInbox   bool `json:"isInbox"`

	// Body is only set for full and raw fetches.
	Body *Body `json:"body,omitempty"`
}

// HasLabel reports whether the message carries label.
func (m Message) HasLabel(label string) bool {
	for _, l := range m.LabelIDs {
		if l == label {
			return true
		}
	}
	return false
}

// Header returns the value of a lower-cased header name, or "".
func (m Message) Header(name string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[name]
}

// Sender is the display name and address of a message author.
type Sender struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Body holds the decoded content of a message. Either field may be empty.
type Body struct {
	HTML  string `json:"html"`
	Plain string `json:"plain"`
}

// Draft is an outgoing message.
type Draft struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from,omitempty"`

	// ThreadID continues an existing conversation when set.
	ThreadID   string `json:"threadId,omitempty"`
	InReplyTo  string `json:"inReplyTo,omitempty"`
	References string `json:"references,omitempty"`
}

// MessagePage is one page of a message listing.
type MessagePage struct {
	Messages           []Message `json:"messages"`
	NextPageToken      string    `json:"nextPageToken,omitempty"`
	ResultSizeEstimate int64     `json:"resultSizeEstimate"`
}

// Profile describes the signed-in mailbox.
type Profile struct {
	EmailAddress  string `json:"emailAddress"`
	MessagesTotal int64  `json:"messagesTotal"`
	ThreadsTotal  int64  `json:"threadsTotal"`
	HistoryID     uint64 `json:"historyId"`
}

// SendResult is the provider's acknowledgement of a sent message.
type SendResult struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	LabelIDs []string `json:"labelIds"`
}
