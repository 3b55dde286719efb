package chat

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewMessageID_UniqueAndOrdered(t *testing.T) {
	req := require.New(t)
	seen := make(map[string]struct{}, 1000)
	prev := ""
	for i := 0; i < 1000; i++ {
		id := NewMessageID()
		parsed, err := uuid.Parse(id)
		req.NoError(err)
		req.Equal(uuid.Version(7), parsed.Version())
		req.NotContains(seen, id)
		seen[id] = struct{}{}
		req.Greater(id, prev)
		prev = id
	}
}
