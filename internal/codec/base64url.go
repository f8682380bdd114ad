package codec

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeBase64URL encodes text as unpadded base64url, the form the
// provider expects for raw message payloads.
func EncodeBase64URL(text string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(text))
}

// DecodeBase64URL reverses EncodeBase64URL. Padded input is accepted.
// Invalid UTF-8 sequences in the decoded bytes are replaced with U+FFFD.
func DecodeBase64URL(text string) (string, error) {
	data, err := DecodeBase64URLBytes(text)
	if err != nil {
		return "", err
	}

	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}

// DecodeBase64URLBytes is DecodeBase64URL without the UTF-8 pass, for
// payloads such as raw messages that carry their own charsets.
func DecodeBase64URLBytes(text string) ([]byte, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(text), "=")

	data, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decoding base64url: %w", err)
	}
	return data, nil
}
