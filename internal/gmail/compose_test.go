package gmail

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/mailbar/internal/model"
)

func TestReplyDraft(t *testing.T) {
	original := &model.Message{
		ThreadID: "t1",
		Sender:   model.Sender{Name: "Jane", Email: "jane@example.com"},
		Headers: map[string]string{
			"subject":    "RE: status",
			"message-id": "<m1@example.com>",
		},
	}

	draft := replyDraft(original, "done")

	assert.Equal(t, model.Draft{
		To:         "jane@example.com",
		Subject:    "RE: status",
		Body:       "done",
		ThreadID:   "t1",
		InReplyTo:  "<m1@example.com>",
		References: "<m1@example.com>",
	}, draft)
}

func TestForwardDraft_FallsBackToSnippet(t *testing.T) {
	original := &model.Message{
		Snippet: "short preview",
		Headers: map[string]string{
			"from":    "jane@example.com",
			"to":      "me@example.com",
			"date":    "Mon, 1 Jan 2024 10:00:00 +0000",
			"subject": "Numbers",
		},
	}

	draft := forwardDraft(original, "amy@example.com", "")

	assert.Equal(t, "amy@example.com", draft.To)
	assert.Equal(t, "Fwd: Numbers", draft.Subject)
	assert.Empty(t, draft.ThreadID)
	assert.Equal(t, forwardedHeader+"\n"+
		"From: jane@example.com\n"+
		"Date: Mon, 1 Jan 2024 10:00:00 +0000\n"+
		"Subject: Numbers\n"+
		"To: me@example.com\n"+
		"\n"+
		"short preview", draft.Body)
}

func TestWithPrefix(t *testing.T) {
	assert.Equal(t, "Re: hello", withPrefix("hello", "Re:"))
	assert.Equal(t, "re: hello", withPrefix("re: hello", "Re:"))
	assert.Equal(t, "Fwd: Re: hello", withPrefix("Re: hello", "Fwd:"))
	assert.Equal(t, "Re: ", withPrefix("", "Re:"))
}
