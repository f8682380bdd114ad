package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbar/internal/model"
)

func decodedMIME(t *testing.T, draft model.Draft) (headers []string, body string) {
	t.Helper()

	raw, err := DecodeBase64URL(BuildMIMEMessage(draft))
	require.NoError(t, err)

	head, body, found := strings.Cut(raw, "\r\n\r\n")
	require.True(t, found, "missing blank line between headers and body")
	return strings.Split(head, "\r\n"), body
}

func TestBuildMIMEMessage_MinimalHeaders(t *testing.T) {
	headers, body := decodedMIME(t, model.Draft{
		To:      "bob@example.com",
		Subject: "Lunch",
		Body:    "Noon?",
	})

	assert.Equal(t, []string{
		"To: bob@example.com",
		"Subject: Lunch",
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
	}, headers)
	assert.Equal(t, "Noon?", body)
}

func TestBuildMIMEMessage_AllHeadersInOrder(t *testing.T) {
	headers, body := decodedMIME(t, model.Draft{
		From:       "alice@example.com",
		To:         "bob@example.com",
		Subject:    "Re: Lunch",
		Body:       "Sure.\r\n\r\nSee you.",
		InReplyTo:  "<m1@example.com>",
		References: "<m0@example.com> <m1@example.com>",
	})

	assert.Equal(t, []string{
		"From: alice@example.com",
		"To: bob@example.com",
		"Subject: Re: Lunch",
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"In-Reply-To: <m1@example.com>",
		"References: <m0@example.com> <m1@example.com>",
	}, headers)
	// The body may contain blank lines of its own; only the first one splits.
	assert.Equal(t, "Sure.\r\n\r\nSee you.", body)
}

func TestBuildMIMEMessage_EncodesNonASCIISubject(t *testing.T) {
	headers, _ := decodedMIME(t, model.Draft{To: "bob@example.com", Subject: "Grüße"})

	require.Len(t, headers, 4)
	assert.True(t, strings.HasPrefix(headers[1], "Subject: =?UTF-8?b?"), headers[1])
}
