package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-ctf-client/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestValueOr(t *testing.T) {
	role := "Admin"
	empty := ""
	require.Equal(t, "Admin", utils.ValueOr(&role, "User"))
	require.Equal(t, "User", utils.ValueOr(&empty, "User"))
	require.Equal(t, "User", utils.ValueOr[string](nil, "User"))
}
