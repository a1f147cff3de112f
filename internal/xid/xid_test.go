package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrefixesUUID(t *testing.T) {
	id := New("prd")
	require.True(t, strings.HasPrefix(id, "prd-"))
	_, err := uuid.Parse(strings.TrimPrefix(id, "prd-"))
	assert.NoError(t, err)
	assert.NotEqual(t, id, New("prd"))
}

func TestNewWithoutPrefix(t *testing.T) {
	_, err := uuid.Parse(New(""))
	assert.NoError(t, err)
}
