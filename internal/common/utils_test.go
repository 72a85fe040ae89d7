package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	require.Equal(t, "new york", NormalizeKey("  New   York "))
	require.Equal(t, "", NormalizeKey(" \t "))
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"London", "New York", "Tokyo"}, SplitList("London, New York ,,Tokyo"))
	require.Nil(t, SplitList(""))
}
