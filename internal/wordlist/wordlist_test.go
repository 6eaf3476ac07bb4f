package wordlist_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"conduit/internal/domain"
	"conduit/internal/wordlist"
)

func TestChoose(t *testing.T) {
	words, err := wordlist.Choose(3)
	require.NoError(t, err)
	require.Len(t, strings.Split(words, "-"), 3)
}

func TestJoinSplit(t *testing.T) {
	code := wordlist.Join("7", "crossover-clockwork")
	np, words, err := wordlist.Split(code)
	require.NoError(t, err)
	require.Equal(t, "7", np)
	require.Equal(t, "crossover-clockwork", words)
}

func TestSplitMalformed(t *testing.T) {
	for _, bad := range []string{"", "7", "-word", "7-"} {
		_, _, err := wordlist.Split(domain.Code(bad))
		require.Error(t, err, "code %q", bad)
	}
}
