package codec

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"google.golang.org/api/gmail/v1"

	"github.com/nhle/mailbar/internal/model"
)

// maxPartDepth bounds the MIME tree walk. Provider payloads are never
// this deep; anything past it is ignored.
const maxPartDepth = 32

// ExtractBody walks the MIME tree of a payload depth-first, parent before
// children, and returns the decoded text/plain and text/html content.
// When several parts share a type the last one visited wins. Parts whose
// data cannot be decoded are skipped. If no HTML part exists, HTML is
// synthesized from the plain text.
func ExtractBody(part *gmail.MessagePart) model.Body {
	var body model.Body
	walkParts(part, 0, &body)
	return withSynthesizedHTML(body)
}

func walkParts(part *gmail.MessagePart, depth int, body *model.Body) {
	if part == nil || depth > maxPartDepth {
		return
	}

	if part.Body != nil && part.Body.Data != "" {
		switch mediaType(part.MimeType) {
		case "text/plain":
			if text, err := DecodeBase64URL(part.Body.Data); err == nil {
				body.Plain = text
			}
		case "text/html":
			if text, err := DecodeBase64URL(part.Body.Data); err == nil {
				body.HTML = text
			}
		}
	}

	for _, child := range part.Parts {
		walkParts(child, depth+1, body)
	}
}

// ParseRaw extracts the allow-listed headers and the plain and HTML bodies
// of a complete RFC 5322 message, as returned by the provider's raw format.
// Non UTF-8 charsets are converted.
func ParseRaw(raw []byte) (map[string]string, model.Body, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, model.Body{}, fmt.Errorf("reading raw message: %w", err)
	}
	defer mr.Close()

	headers := make(map[string]string)
	for _, name := range MetadataHeaders {
		value, err := mr.Header.Text(name)
		if err != nil {
			value = mr.Header.Get(name)
		}
		if value != "" {
			headers[strings.ToLower(name)] = value
		}
	}

	var body model.Body
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, model.Body{}, fmt.Errorf("reading message part: %w", err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()

		data, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch mediaType(ct) {
		case "text/plain":
			body.Plain = string(data)
		case "text/html":
			body.HTML = string(data)
		}
	}

	return headers, withSynthesizedHTML(body), nil
}

// PlainToHTML escapes text for HTML and turns line breaks into <br>.
func PlainToHTML(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}

func withSynthesizedHTML(body model.Body) model.Body {
	if body.HTML == "" && body.Plain != "" {
		body.HTML = PlainToHTML(body.Plain)
	}
	return body
}

func mediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
