package datasource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/databox/codec"
)

// failingSource implements DataSource and always errors.
type failingSource struct{}

func (failingSource) GetFull(context.Context) (codec.Table, error) {
	return codec.Table{}, errors.New("warehouse unreachable")
}

func sampleTable() codec.Table {
	return codec.Table{
		Columns: []string{"a", "b"},
		Rows:    [][]any{{1.0, 4.0}, {2.0, 5.0}, {3.0, 6.0}},
	}
}

func TestCSVFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,4\n2,5\n3,6\n"), 0o600))

	table, err := CSVFile{Path: path}.GetFull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleTable(), table)
}

func TestCSVFileSourceMissing(t *testing.T) {
	_, err := CSVFile{Path: filepath.Join(t.TempDir(), "nope.csv")}.GetFull(context.Background())
	require.Error(t, err)
}

func TestChainFallbackOrder(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("FirstProviderWins", func(t *testing.T) {
		chain := NewChain(logger,
			Static{Table: sampleTable()},
			failingSource{},
		)

		table, err := chain.GetFull(context.Background())
		require.NoError(t, err)
		assert.Equal(t, sampleTable(), table)
	})

	t.Run("FallsBackPastFailures", func(t *testing.T) {
		chain := NewChain(logger,
			failingSource{},
			failingSource{},
			Static{Table: sampleTable()},
		)

		table, err := chain.GetFull(context.Background())
		require.NoError(t, err)
		assert.Equal(t, sampleTable(), table)
	})

	t.Run("AllFail", func(t *testing.T) {
		chain := NewChain(logger, failingSource{}, failingSource{})

		_, err := chain.GetFull(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all data source providers failed")
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := NewChain(logger).GetFull(context.Background())
		require.Error(t, err)
	})
}
