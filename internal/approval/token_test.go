package approval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintVerifyRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret")

	token := codec.Mint("T-42")
	require.Len(t, token, 64)
	assert.True(t, codec.Verify("T-42", token))
}

func TestMintIsDeterministic(t *testing.T) {
	codec := NewCodec("test-secret")
	assert.Equal(t, codec.Mint("T-42"), codec.Mint("T-42"))
	assert.NotEqual(t, codec.Mint("T-42"), codec.Mint("T-43"))
}

func TestVerifyRejectsTampering(t *testing.T) {
	codec := NewCodec("test-secret")
	token := codec.Mint("T-42")

	t.Run("altered token", func(t *testing.T) {
		tampered := "0" + token[1:]
		if tampered == token {
			tampered = "1" + token[1:]
		}
		assert.False(t, codec.Verify("T-42", tampered))
	})

	t.Run("different ticket", func(t *testing.T) {
		assert.False(t, codec.Verify("T-43", token))
	})

	t.Run("different secret", func(t *testing.T) {
		other := NewCodec("other-secret")
		assert.False(t, other.Verify("T-42", token))
	})

	t.Run("empty token", func(t *testing.T) {
		assert.False(t, codec.Verify("T-42", ""))
	})
}

func TestBuildLinks(t *testing.T) {
	codec := NewCodec("test-secret")
	links := codec.BuildLinks("http://localhost:8080", "T-42")

	assert.NotEqual(t, links.Approve, links.Reject)
	assert.True(t, strings.HasPrefix(links.Approve, "http://localhost:8080/ticket/approve/T-42?token="))
	assert.True(t, strings.HasPrefix(links.Reject, "http://localhost:8080/ticket/reject/T-42?token="))

	token := links.Approve[strings.Index(links.Approve, "token=")+len("token="):]
	assert.True(t, codec.Verify("T-42", token))
}
