package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"Tea", "Hot Chocolate", "Coffee"}, SplitList(" Tea, Hot Chocolate ,,Coffee ,"))
	assert.Empty(t, SplitList(" , ,"))
	assert.Empty(t, SplitList(""))
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("staff-key")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("staff-key", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("staff-key", "not-a-hash"))
}
