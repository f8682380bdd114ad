package bridge

import "fmt"

// Action names a bridge operation. The set is closed: every value is
// listed below and handled by Dispatcher.Dispatch.
type Action string

const (
	ActionAuthenticate   Action = "authenticate"
	ActionSignOut        Action = "signOut"
	ActionCheckAuth      Action = "checkAuth"
	ActionGetProfile     Action = "getProfile"
	ActionListMessages   Action = "listMessages"
	ActionGetMessage     Action = "getMessage"
	ActionSendMessage    Action = "sendMessage"
	ActionReplyToMessage Action = "replyToMessage"
	ActionForwardMessage Action = "forwardMessage"
	ActionTrashMessage   Action = "trashMessage"
	ActionDeleteMessage  Action = "deleteMessage"
	ActionToggleStar     Action = "toggleStar"
	ActionMarkAsRead     Action = "markAsRead"
	ActionMarkAsUnread   Action = "markAsUnread"
	ActionGetSettings    Action = "getSettings"
	ActionSaveSettings   Action = "saveSettings"
	ActionRefreshEmails  Action = "refreshEmails"
)

var actions = []Action{
	ActionAuthenticate,
	ActionSignOut,
	ActionCheckAuth,
	ActionGetProfile,
	ActionListMessages,
	ActionGetMessage,
	ActionSendMessage,
	ActionReplyToMessage,
	ActionForwardMessage,
	ActionTrashMessage,
	ActionDeleteMessage,
	ActionToggleStar,
	ActionMarkAsRead,
	ActionMarkAsUnread,
	ActionGetSettings,
	ActionSaveSettings,
	ActionRefreshEmails,
}

// Actions returns every supported action.
func Actions() []Action {
	return append([]Action(nil), actions...)
}

// UnknownActionError is returned for action names outside the closed set.
type UnknownActionError struct {
	Name string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("Unknown action: %s", e.Name)
}

// ParseAction validates name against the supported actions.
func ParseAction(name string) (Action, error) {
	for _, a := range actions {
		if string(a) == name {
			return a, nil
		}
	}
	return "", &UnknownActionError{Name: name}
}
