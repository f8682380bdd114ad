package gmail

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhle/mailbar/internal/codec"
	"github.com/nhle/mailbar/internal/model"
)

const forwardedHeader = "---------- Forwarded message ---------"

// ReplyToMessage replies to the sender of message id within its thread,
// setting In-Reply-To and References from the original.
func (c *Client) ReplyToMessage(ctx context.Context, id, body string) (*model.SendResult, error) {
	original, err := c.GetMessage(ctx, id, FormatFull)
	if err != nil {
		return nil, fmt.Errorf("loading message to reply to: %w", err)
	}

	return c.SendMessage(ctx, replyDraft(original, body))
}

// ForwardMessage forwards message id to a new recipient as a new thread,
// quoting the original below additionalBody.
func (c *Client) ForwardMessage(ctx context.Context, id, to, additionalBody string) (*model.SendResult, error) {
	original, err := c.GetMessage(ctx, id, FormatFull)
	if err != nil {
		return nil, fmt.Errorf("loading message to forward: %w", err)
	}

	return c.SendMessage(ctx, forwardDraft(original, to, additionalBody))
}

func replyDraft(original *model.Message, body string) model.Draft {
	messageID := original.Header(codec.HeaderMessageID)

	references := original.Header(codec.HeaderReferences)
	switch {
	case references != "" && messageID != "":
		references += " " + messageID
	case references == "":
		references = messageID
	}

	return model.Draft{
		To:         original.Sender.Email,
		Subject:    withPrefix(original.Header(codec.HeaderSubject), "Re:"),
		Body:       body,
		ThreadID:   original.ThreadID,
		InReplyTo:  messageID,
		References: references,
	}
}

func forwardDraft(original *model.Message, to, additionalBody string) model.Draft {
	quoted := original.Snippet
	if original.Body != nil && original.Body.Plain != "" {
		quoted = original.Body.Plain
	}

	var b strings.Builder
	if additionalBody != "" {
		b.WriteString(additionalBody)
		b.WriteString("\n\n")
	}
	b.WriteString(forwardedHeader + "\n")
	fmt.Fprintf(&b, "From: %s\n", original.Header(codec.HeaderFrom))
	fmt.Fprintf(&b, "Date: %s\n", original.Header(codec.HeaderDate))
	fmt.Fprintf(&b, "Subject: %s\n", original.Header(codec.HeaderSubject))
	fmt.Fprintf(&b, "To: %s\n", original.Header(codec.HeaderTo))
	b.WriteString("\n")
	b.WriteString(quoted)

	return model.Draft{
		To:      to,
		Subject: withPrefix(original.Header(codec.HeaderSubject), "Fwd:"),
		Body:    b.String(),
	}
}

// withPrefix prepends prefix to subject unless it already starts with it,
// ignoring case.
func withPrefix(subject, prefix string) string {
	trimmed := strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(trimmed), strings.ToLower(prefix)) {
		return subject
	}
	return prefix + " " + subject
}
