package gmail

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bradenaw/juniper/parallel"
	"google.golang.org/api/gmail/v1"

	"github.com/nhle/mailbar/internal/codec"
	"github.com/nhle/mailbar/internal/model"
)

// Filter selects which slice of the mailbox a listing covers.
type Filter string

const (
	FilterInbox   Filter = "inbox"
	FilterUnread  Filter = "unread"
	FilterStarred Filter = "starred"
	FilterSent    Filter = "sent"
	FilterOther   Filter = "other"
)

// Format controls how much of a message the provider returns.
type Format string

const (
	FormatFull     Format = "full"
	FormatMetadata Format = "metadata"
	FormatMinimal  Format = "minimal"
	FormatRaw      Format = "raw"
)

// DefaultMaxResults is the page size used when none is given.
const DefaultMaxResults = 20

// ListOptions controls a message listing.
type ListOptions struct {
	Filter     Filter `json:"filter"`
	MaxResults int64  `json:"maxResults"`
	PageToken  string `json:"pageToken,omitempty"`
	Query      string `json:"q,omitempty"`
}

// labelsAndQuery resolves a filter to provider label IDs and the final
// search query.
func (o ListOptions) labelsAndQuery() ([]string, string, error) {
	q := strings.TrimSpace(o.Query)

	switch o.Filter {
	case FilterInbox, "":
		return []string{model.LabelInbox}, q, nil
	case FilterUnread:
		return []string{model.LabelInbox}, strings.TrimSpace("is:unread " + q), nil
	case FilterStarred:
		return []string{model.LabelStarred}, q, nil
	case FilterSent:
		return []string{model.LabelSent}, q, nil
	case FilterOther:
		return nil, q, nil
	default:
		return nil, "", fmt.Errorf("unknown filter %q", o.Filter)
	}
}

// GetProfile returns the signed-in mailbox's profile.
func (c *Client) GetProfile(ctx context.Context) (*model.Profile, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	p, err := c.svc.Users.GetProfile(userID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", c.classify(err))
	}

	return &model.Profile{
		EmailAddress:  p.EmailAddress,
		MessagesTotal: p.MessagesTotal,
		ThreadsTotal:  p.ThreadsTotal,
		HistoryID:     p.HistoryId,
	}, nil
}

// ListMessages lists one page of messages and fetches metadata for each
// of them concurrently. Results keep the provider's order. If any detail
// fetch fails the whole listing fails and no messages are returned.
func (c *Client) ListMessages(ctx context.Context, opts ListOptions) (*model.MessagePage, error) {
	labels, q, err := opts.labelsAndQuery()
	if err != nil {
		return nil, err
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	listCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	call := c.svc.Users.Messages.List(userID).MaxResults(maxResults)
	if len(labels) > 0 {
		call = call.LabelIds(labels...)
	}
	if opts.PageToken != "" {
		call = call.PageToken(opts.PageToken)
	}
	if q != "" {
		call = call.Q(q)
	}

	res, err := call.Context(listCtx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", c.classify(err))
	}

	messages := make([]model.Message, len(res.Messages))
	if len(res.Messages) > 0 {
		fanOut := len(res.Messages)
		err = parallel.DoContext(ctx, fanOut, len(res.Messages), func(ctx context.Context, i int) error {
			msg, err := c.GetMessage(ctx, res.Messages[i].Id, FormatMetadata)
			if err != nil {
				return err
			}
			messages[i] = *msg
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("fetching message details: %w", err)
		}
	}

	c.log.Debug().
		Str("filter", string(opts.Filter)).
		Int("count", len(messages)).
		Msg("listed messages")

	return &model.MessagePage{
		Messages:           messages,
		NextPageToken:      res.NextPageToken,
		ResultSizeEstimate: res.ResultSizeEstimate,
	}, nil
}

// GetMessage fetches a single message. Full and raw formats populate
// Body; metadata and minimal leave it nil.
func (c *Client) GetMessage(ctx context.Context, id string, format Format) (*model.Message, error) {
	if format == "" {
		format = FormatFull
	}
	switch format {
	case FormatFull, FormatMetadata, FormatMinimal, FormatRaw:
	default:
		return nil, fmt.Errorf("unknown message format %q", format)
	}

	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	call := c.svc.Users.Messages.Get(userID, id).Format(string(format))
	if format == FormatMetadata {
		call = call.MetadataHeaders(codec.MetadataHeaders...)
	}

	raw, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", id, c.classify(err))
	}

	return c.normalize(raw, format)
}

// SendMessage sends draft, continuing draft.ThreadID when set.
func (c *Client) SendMessage(ctx context.Context, draft model.Draft) (*model.SendResult, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	msg := &gmail.Message{Raw: codec.BuildMIMEMessage(draft)}
	if draft.ThreadID != "" {
		msg.ThreadId = draft.ThreadID
	}

	sent, err := c.svc.Users.Messages.Send(userID, msg).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", c.classify(err))
	}

	c.log.Info().Str("id", sent.Id).Str("thread_id", sent.ThreadId).Msg("message sent")

	return &model.SendResult{
		ID:       sent.Id,
		ThreadID: sent.ThreadId,
		LabelIDs: sent.LabelIds,
	}, nil
}

// TrashMessage moves a message to the trash. This is reversible.
func (c *Client) TrashMessage(ctx context.Context, id string) (*model.Message, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	msg, err := c.svc.Users.Messages.Trash(userID, id).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("trashing message %s: %w", id, c.classify(err))
	}
	return c.normalize(msg, FormatMinimal)
}

// DeleteMessage permanently deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := c.svc.Users.Messages.Delete(userID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("deleting message %s: %w", id, c.classify(err))
	}
	return nil
}

// ModifyLabels adds and removes labels on a message and returns the
// message's resulting label state.
func (c *Client) ModifyLabels(ctx context.Context, id string, add, remove []string) (*model.Message, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}
	msg, err := c.svc.Users.Messages.Modify(userID, id, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("modifying labels on %s: %w", id, c.classify(err))
	}
	return c.normalize(msg, FormatMinimal)
}

// MarkAsRead removes the UNREAD label.
func (c *Client) MarkAsRead(ctx context.Context, id string) (*model.Message, error) {
	return c.ModifyLabels(ctx, id, nil, []string{model.LabelUnread})
}

// MarkAsUnread adds the UNREAD label.
func (c *Client) MarkAsUnread(ctx context.Context, id string) (*model.Message, error) {
	return c.ModifyLabels(ctx, id, []string{model.LabelUnread}, nil)
}

// StarMessage adds the STARRED label.
func (c *Client) StarMessage(ctx context.Context, id string) (*model.Message, error) {
	return c.ModifyLabels(ctx, id, []string{model.LabelStarred}, nil)
}

// UnstarMessage removes the STARRED label.
func (c *Client) UnstarMessage(ctx context.Context, id string) (*model.Message, error) {
	return c.ModifyLabels(ctx, id, nil, []string{model.LabelStarred})
}

// ToggleStar flips the star based on the caller's view of the current
// state. The message is not re-fetched to check it.
func (c *Client) ToggleStar(ctx context.Context, id string, currentlyStarred bool) (*model.Message, error) {
	if currentlyStarred {
		return c.UnstarMessage(ctx, id)
	}
	return c.StarMessage(ctx, id)
}

// normalize converts a provider message into a model.Message.
func (c *Client) normalize(raw *gmail.Message, format Format) (*model.Message, error) {
	headers := codec.ParseHeaders(raw.Payload)

	var body *model.Body
	switch format {
	case FormatFull:
		b := codec.ExtractBody(raw.Payload)
		body = &b
	case FormatRaw:
		data, err := codec.DecodeBase64URLBytes(raw.Raw)
		if err != nil {
			return nil, fmt.Errorf("decoding raw message %s: %w", raw.Id, err)
		}
		rawHeaders, b, err := codec.ParseRaw(data)
		if err != nil {
			return nil, fmt.Errorf("parsing raw message %s: %w", raw.Id, err)
		}
		headers = rawHeaders
		body = &b
	}
	if body != nil && c.sanitizer != nil && body.HTML != codec.PlainToHTML(body.Plain) {
		body.HTML = c.sanitizer.SanitizeHTML(body.HTML)
	}

	msg := &model.Message{
		ID:       raw.Id,
		ThreadID: raw.ThreadId,
		LabelIDs: raw.LabelIds,
		Snippet:  raw.Snippet,
		Headers:  headers,
		Sender:   codec.ParseSender(headers[codec.HeaderFrom]),
		Body:     body,
	}
	if raw.InternalDate != 0 {
		msg.InternalDate = strconv.FormatInt(raw.InternalDate, 10)
	}
	msg.IsUnread = msg.HasLabel(model.LabelUnread)
	msg.IsStarred = msg.HasLabel(model.LabelStarred)
	msg.IsInbox = msg.HasLabel(model.LabelInbox)

	return msg, nil
}
