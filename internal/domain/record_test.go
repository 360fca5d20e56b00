package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		line        string
		expectedKey string
		expectedRaw string
		expectedErr error
	}{
		{
			name:        "keyed json object",
			line:        "invoice.created\t{\"id\":1}",
			expectedKey: "invoice.created",
			expectedRaw: `{"id":1}`,
		},
		{
			name:        "bare json uses default key",
			line:        `{"id":1}`,
			expectedKey: "default.key",
			expectedRaw: `{"id":1}`,
		},
		{
			name:        "plain text is encoded as a json string",
			line:        "hello world",
			expectedKey: "default.key",
			expectedRaw: `"hello world"`,
		},
		{
			name:        "empty key falls back to default",
			line:        "\t[1,2]",
			expectedKey: "default.key",
			expectedRaw: `[1,2]`,
		},
		{
			name:        "windows line ending",
			line:        "a.b\t42\r\n",
			expectedKey: "a.b",
			expectedRaw: `42`,
		},
		{
			name:        "only the first tab separates the key",
			line:        "a.b\tx\ty",
			expectedKey: "a.b",
			expectedRaw: `"x\ty"`,
		},
		{
			name:        "blank line",
			line:        "   ",
			expectedErr: ErrEmptyRecord,
		},
		{
			name:        "key without payload",
			line:        "a.b\t  ",
			expectedErr: ErrEmptyRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record, err := ParseRecord(tt.line, "default.key")

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedKey, record.RoutingKey)
			assert.JSONEq(t, tt.expectedRaw, string(record.Payload))
		})
	}
}
