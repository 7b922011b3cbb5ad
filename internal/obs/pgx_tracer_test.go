package obs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatementVerb(t *testing.T) {
	require.Equal(t, "INSERT", statementVerb("  insert into transactions (id) values ($1)"))
	require.Equal(t, "QUERY", statementVerb("   "))
}

func TestClipStatement(t *testing.T) {
	long := "SELECT " + strings.Repeat("x, ", 200)
	clipped := clipStatement(long)
	require.True(t, strings.HasSuffix(clipped, "..."))
	require.Len(t, clipped, maxStatementLen+3)
	require.Equal(t, "SELECT 1", clipStatement("SELECT\n\t 1"))
}
