package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSyntax(t *testing.T) {
	t.Run("ValidScripts", func(t *testing.T) {
		scripts := []string{
			`result = sum(df["a"])`,
			"x = 1\nfor i in range(3):\n    x += i\nresult = x",
			`def helper(v):
    return v * 2
result = helper(21)`,
			"",
		}
		for _, code := range scripts {
			assert.NoError(t, CheckSyntax(code))
		}
	})

	t.Run("InvalidCarriesPosition", func(t *testing.T) {
		err := CheckSyntax("def f(:")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "syntax error at line 1 col ")
	})

	t.Run("LaterLineReported", func(t *testing.T) {
		err := CheckSyntax("x = 1\ny = = 2\n")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})
}
