package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizer_StripsScripts(t *testing.T) {
	s := NewSanitizer()

	out := s.SanitizeHTML(`<p onclick="steal()">hi<script>alert(1)</script></p>`)
	assert.Contains(t, out, "hi")
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "onclick")
}

func TestSanitizer_KeepsFormatting(t *testing.T) {
	s := NewSanitizer()

	out := s.SanitizeHTML(`<b>bold</b><table><tr><td>cell</td></tr></table>`)
	assert.Contains(t, out, "<b>bold</b>")
	assert.Contains(t, out, "<td>cell</td>")
}
