package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/mailbar/internal/model"
)

func TestParseSender(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  model.Sender
	}{
		{
			name:  "quoted-display-name",
			input: `"Jane Doe" <jane@x.com>`,
			want:  model.Sender{Name: "Jane Doe", Email: "jane@x.com"},
		},
		{
			name:  "bare-address",
			input: "bob@x.com",
			want:  model.Sender{Name: "bob", Email: "bob@x.com"},
		},
		{
			name:  "empty",
			input: "",
			want:  model.Sender{Name: "Unknown", Email: ""},
		},
		{
			name:  "unquoted-display-name",
			input: "Jane Doe <jane@x.com>",
			want:  model.Sender{Name: "Jane Doe", Email: "jane@x.com"},
		},
		{
			name:  "angle-only",
			input: "<carol@x.com>",
			want:  model.Sender{Name: "carol", Email: "carol@x.com"},
		},
		{
			name:  "lenient-fallback",
			input: "Doe, Jane [Eng] <jane@x.com>",
			want:  model.Sender{Name: "Doe, Jane [Eng]", Email: "jane@x.com"},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseSender(tc.input))
		})
	}
}
