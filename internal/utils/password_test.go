package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/utils"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := utils.HashPassword("s3cret")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret", hash)

	require.True(t, utils.CheckPassword(hash, "s3cret"))
	require.False(t, utils.CheckPassword(hash, "wrong"))
	require.False(t, utils.CheckPassword("not-a-hash", "s3cret"))
}
