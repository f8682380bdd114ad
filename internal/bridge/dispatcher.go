package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nhle/mailbar/internal/gmail"
	"github.com/nhle/mailbar/internal/model"
)

// Error codes attached to failed responses so the UI can force a new
// sign-in instead of showing a generic failure.
const (
	CodeAuthRequired = "AUTH_REQUIRED"
	CodeAuthExpired  = "AUTH_EXPIRED"
)

// Mailer is the mail client surface the bridge dispatches to.
type Mailer interface {
	SetToken(token string)
	ClearToken()
	GetProfile(ctx context.Context) (*model.Profile, error)
	ListMessages(ctx context.Context, opts gmail.ListOptions) (*model.MessagePage, error)
	GetMessage(ctx context.Context, id string, format gmail.Format) (*model.Message, error)
	SendMessage(ctx context.Context, draft model.Draft) (*model.SendResult, error)
	ReplyToMessage(ctx context.Context, id, body string) (*model.SendResult, error)
	ForwardMessage(ctx context.Context, id, to, additionalBody string) (*model.SendResult, error)
	TrashMessage(ctx context.Context, id string) (*model.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	ToggleStar(ctx context.Context, id string, currentlyStarred bool) (*model.Message, error)
	MarkAsRead(ctx context.Context, id string) (*model.Message, error)
	MarkAsUnread(ctx context.Context, id string) (*model.Message, error)
}

// Authenticator obtains and discards provider credentials.
type Authenticator interface {
	Token(ctx context.Context, interactive bool) (string, error)
	SignOut(ctx context.Context) error
}

// SettingsStore reads and persists user settings.
type SettingsStore interface {
	Get() model.Settings
	Save(settings model.Settings) (model.Settings, error)
}

// Poller is the background mail check.
type Poller interface {
	Refresh()
	Reset()
	SetInterval(minutes int)
}

// Request is a single call from the toolbar UI.
type Request struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Response carries either a success payload or an error message.
type Response struct {
	Data  any
	Error string
	Code  string
}

// MarshalJSON writes the bare payload on success and
// {"error": ..., "code": ...} on failure.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
			Code  string `json:"code,omitempty"`
		}{r.Error, r.Code})
	}
	return json.Marshal(r.Data)
}

// OK reports whether the response is a success.
func (r Response) OK() bool {
	return r.Error == ""
}

type idData struct {
	ID string `json:"id"`
}

type getMessageData struct {
	ID     string       `json:"id"`
	Format gmail.Format `json:"format"`
}

type replyData struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

type forwardData struct {
	ID             string `json:"id"`
	To             string `json:"to"`
	AdditionalBody string `json:"additionalBody"`
}

type toggleStarData struct {
	ID        string `json:"id"`
	IsStarred bool   `json:"isStarred"`
}

type authStatus struct {
	Authenticated bool `json:"authenticated"`
}

type success struct {
	Success bool `json:"success"`
}

// Dispatcher routes bridge requests to the mail client, authenticator,
// settings store and poller. Each request is handled independently.
type Dispatcher struct {
	mail     Mailer
	auth     Authenticator
	settings SettingsStore
	poller   Poller
	log      zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	mail Mailer,
	auth Authenticator,
	settings SettingsStore,
	poller Poller,
	log zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		mail:     mail,
		auth:     auth,
		settings: settings,
		poller:   poller,
		log:      log,
	}
}

// Dispatch runs req and converts any failure into an error response.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	action, err := ParseAction(req.Action)
	if err != nil {
		return d.fail(req.Action, err)
	}

	data, err := d.handle(ctx, action, req.Data)
	if err != nil {
		return d.fail(req.Action, err)
	}
	return Response{Data: data}
}

func (d *Dispatcher) handle(ctx context.Context, action Action, raw json.RawMessage) (any, error) {
	switch action {
	case ActionAuthenticate:
		token, err := d.auth.Token(ctx, true)
		if err != nil {
			return nil, err
		}
		d.mail.SetToken(token)
		return authStatus{Authenticated: true}, nil

	case ActionSignOut:
		err := d.auth.SignOut(ctx)
		// Reset first so an in-flight poll cannot reinstall its token.
		d.poller.Reset()
		d.mail.ClearToken()
		if err != nil {
			return nil, err
		}
		return success{Success: true}, nil

	case ActionCheckAuth:
		token, err := d.auth.Token(ctx, false)
		if err != nil || token == "" {
			return authStatus{Authenticated: false}, nil
		}
		d.mail.SetToken(token)
		return authStatus{Authenticated: true}, nil

	case ActionGetProfile:
		return d.mail.GetProfile(ctx)

	case ActionListMessages:
		var opts gmail.ListOptions
		if err := decode(action, raw, &opts); err != nil {
			return nil, err
		}
		return d.mail.ListMessages(ctx, opts)

	case ActionGetMessage:
		var in getMessageData
		if err := decodeWithID(action, raw, &in, &in.ID); err != nil {
			return nil, err
		}
		return d.mail.GetMessage(ctx, in.ID, in.Format)

	case ActionSendMessage:
		var draft model.Draft
		if err := decode(action, raw, &draft); err != nil {
			return nil, err
		}
		if draft.To == "" {
			return nil, fmt.Errorf("invalid data for %s: missing recipient", action)
		}
		return d.mail.SendMessage(ctx, draft)

	case ActionReplyToMessage:
		var in replyData
		if err := decodeWithID(action, raw, &in, &in.ID); err != nil {
			return nil, err
		}
		return d.mail.ReplyToMessage(ctx, in.ID, in.Body)

	case ActionForwardMessage:
		var in forwardData
		if err := decodeWithID(action, raw, &in, &in.ID); err != nil {
			return nil, err
		}
		if in.To == "" {
			return nil, fmt.Errorf("invalid data for %s: missing recipient", action)
		}
		return d.mail.ForwardMessage(ctx, in.ID, in.To, in.AdditionalBody)

	case ActionTrashMessage:
		var in idData
		if err := decodeWithID(action, raw, &in, &in.ID); err != nil {
			return nil, err
		}
		return d.mail.TrashMessage(ctx, in.ID)

	case ActionDeleteMessage:
		var in idData
		if err := decodeWithID(action, raw, &in, &in.ID); err != nil {
			return nil, err
		}
		if err := d.mail.DeleteMessage(ctx, in.ID); err != nil {
			return nil, err
		}
		return success{Success: true}, nil

	case ActionToggleStar:
		var in toggleStarData
		if err := decodeWithID(action, raw, &in, &in.ID); err != nil {
			return nil, err
		}
		return d.mail.ToggleStar(ctx, in.ID, in.IsStarred)

	case ActionMarkAsRead:
		var in idData
		if err := decodeWithID(action, raw, &in, &in.ID); err != nil {
			return nil, err
		}
		return d.mail.MarkAsRead(ctx, in.ID)

	case ActionMarkAsUnread:
		var in idData
		if err := decodeWithID(action, raw, &in, &in.ID); err != nil {
			return nil, err
		}
		return d.mail.MarkAsUnread(ctx, in.ID)

	case ActionGetSettings:
		return d.settings.Get(), nil

	case ActionSaveSettings:
		// Fields missing from the request keep their current values.
		next := d.settings.Get()
		if err := decode(action, raw, &next); err != nil {
			return nil, err
		}
		saved, err := d.settings.Save(next)
		if err != nil {
			return nil, err
		}
		d.poller.SetInterval(saved.RefreshInterval)
		return saved, nil

	case ActionRefreshEmails:
		d.poller.Refresh()
		return success{Success: true}, nil
	}

	return nil, &UnknownActionError{Name: string(action)}
}

// fail logs err and converts it into an error response.
func (d *Dispatcher) fail(action string, err error) Response {
	resp := Response{Error: err.Error()}
	switch {
	case gmail.IsAuthExpired(err):
		resp.Code = CodeAuthExpired
	case errors.Is(err, gmail.ErrAuthRequired):
		resp.Code = CodeAuthRequired
	}

	d.log.Warn().Err(err).Str("action", action).Str("code", resp.Code).Msg("bridge request failed")
	return resp
}

func decode(action Action, raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid data for %s: %w", action, err)
	}
	return nil
}

func decodeWithID(action Action, raw json.RawMessage, v any, id *string) error {
	if err := decode(action, raw, v); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("invalid data for %s: missing id", action)
	}
	return nil
}
