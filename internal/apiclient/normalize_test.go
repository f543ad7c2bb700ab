package apiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIDs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single_record",
			in:   `{"_id":"p1","name":"A"}`,
			want: `{"_id":"p1","name":"A","id":"p1"}`,
		},
		{
			name: "list",
			in:   `[{"_id":"p1"},{"_id":"p2"}]`,
			want: `[{"_id":"p1","id":"p1"},{"_id":"p2","id":"p2"}]`,
		},
		{
			name: "nested",
			in:   `{"document":{"_id":"d1"},"user":{"_id":"u1","profile":{"_id":"x"}}}`,
			want: `{"document":{"_id":"d1","id":"d1"},"user":{"_id":"u1","profile":{"_id":"x","id":"x"},"id":"u1"}}`,
		},
		{
			name: "existing_id_wins",
			in:   `{"_id":"server","id":"client"}`,
			want: `{"_id":"server","id":"client"}`,
		},
		{
			name: "numeric_id_becomes_string",
			in:   `[{"id":1,"status":"ready"}]`,
			want: `[{"id":"1","status":"ready"}]`,
		},
		{
			name: "numeric_server_id",
			in:   `{"_id":7}`,
			want: `{"_id":7,"id":"7"}`,
		},
		{
			name: "dotted_key",
			in:   `{"a.b":{"_id":"z"}}`,
			want: `{"a.b":{"_id":"z","id":"z"}}`,
		},
		{
			name: "nothing_to_do",
			in:   `{"answer":"hi"}`,
			want: `{"answer":"hi"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeIDs([]byte(tt.in))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestNormalizeIDsInvalidJSON(t *testing.T) {
	got, err := NormalizeIDs([]byte("nope"))
	require.NoError(t, err)
	assert.Equal(t, "nope", string(got))
}
