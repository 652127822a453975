package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsPrefixedAndUnique(t *testing.T) {
	a := New("aud")
	b := New("aud")

	assert.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "aud-"))
	_, err := uuid.Parse(strings.TrimPrefix(a, "aud-"))
	assert.NoError(t, err)
}
