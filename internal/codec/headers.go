package codec

import (
	"strings"

	"google.golang.org/api/gmail/v1"
)

// Header names kept on a normalized message, lower-cased.
const (
	HeaderFrom       = "from"
	HeaderTo         = "to"
	HeaderSubject    = "subject"
	HeaderDate       = "date"
	HeaderMessageID  = "message-id"
	HeaderReferences = "references"
	HeaderInReplyTo  = "in-reply-to"
)

var allowedHeaders = map[string]bool{
	HeaderFrom:       true,
	HeaderTo:         true,
	HeaderSubject:    true,
	HeaderDate:       true,
	HeaderMessageID:  true,
	HeaderReferences: true,
	HeaderInReplyTo:  true,
}

// MetadataHeaders is the canonical spelling of the allow-listed headers,
// used when asking the provider for a metadata-only fetch.
var MetadataHeaders = []string{
	"From", "To", "Subject", "Date", "Message-ID", "References", "In-Reply-To",
}

// ParseHeaders collects the allow-listed headers of a payload. Names are
// matched case-insensitively and returned lower-cased; values are kept as-is.
// When a header repeats, the last occurrence wins.
func ParseHeaders(part *gmail.MessagePart) map[string]string {
	headers := make(map[string]string)
	if part == nil {
		return headers
	}

	for _, h := range part.Headers {
		if h == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(h.Name))
		if allowedHeaders[name] {
			headers[name] = h.Value
		}
	}

	return headers
}
