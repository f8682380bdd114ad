package gmail

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ErrAuthRequired is returned by every operation while no access token
// is set on the client.
var ErrAuthRequired = errors.New("authentication required")

// AuthExpiredError indicates that the provider rejected the access token
// with HTTP 401. The client drops its token when this happens, so the
// caller has to re-authenticate before retrying.
type AuthExpiredError struct {
	Message string
}

func (e *AuthExpiredError) Error() string {
	if e.Message == "" {
		return "authentication expired"
	}
	return fmt.Sprintf("authentication expired: %s", e.Message)
}

// IsAuthExpired reports whether err (or any error in its chain) is an
// AuthExpiredError.
func IsAuthExpired(err error) bool {
	var authErr *AuthExpiredError
	return errors.As(err, &authErr)
}

// APIError is any other non-2xx response from the provider.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// classify maps provider call errors onto the client's error taxonomy.
// Transport and context errors pass through untouched.
func (c *Client) classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	if gerr.Code == http.StatusUnauthorized {
		c.ClearToken()
		return &AuthExpiredError{Message: gerr.Message}
	}

	msg := gerr.Message
	if msg == "" {
		msg = fmt.Sprintf("API Error: %d", gerr.Code)
	}
	return &APIError{Status: gerr.Code, Message: msg}
}
