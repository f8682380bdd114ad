package codec

import (
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailbar/internal/model"
)

// unknownSender is the display name used when no From header is present.
const unknownSender = "Unknown"

// angleAddr matches `Display Name <addr>` when strict parsing gives up,
// e.g. on unquoted names containing specials.
var angleAddr = regexp.MustCompile(`^\s*"?([^"<]*?)"?\s*<([^>]+)>\s*$`)

// ParseSender splits a From header into a display name and address.
// Without a display name the local part of the address is used as name.
func ParseSender(from string) model.Sender {
	from = strings.TrimSpace(from)
	if from == "" {
		return model.Sender{Name: unknownSender}
	}

	var name, email string
	if addr, err := mail.ParseAddress(from); err == nil {
		name, email = addr.Name, addr.Address
	} else if m := angleAddr.FindStringSubmatch(from); m != nil {
		name, email = strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	} else {
		email = from
	}

	if name == "" {
		name = localPart(email)
	}

	return model.Sender{Name: name, Email: email}
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}
