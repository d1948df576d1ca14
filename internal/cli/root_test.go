package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/pith/internal/cli/config"
	"github.com/leapstack-labs/pith/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(config.ResetConfig)

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCommandTree(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"ingest", "query", "chart", "ai", "export", "import", "prefs", "serve", "version", "completion"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"config", "database", "state", "verbose", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Pith v"+Version)
}

func TestInvalidOutputFlag(t *testing.T) {
	t.Chdir(t.TempDir())
	_, _, err := runCLI(t, "prefs", "get", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestCompletion(t *testing.T) {
	out, _, err := runCLI(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "pith")
}

func TestWorkbenchEndToEnd(t *testing.T) {
	ws := testutil.SetupTestWorkspace(t)
	t.Chdir(ws)

	out, _, err := runCLI(t, "ingest", "sales.csv", "-o", "json")
	require.NoError(t, err)
	var ingested []struct {
		Source string `json:"source"`
		Result struct {
			TableName string `json:"tableName"`
			RowCount  int    `json:"rowCount"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &ingested))
	require.Len(t, ingested, 1)
	assert.Equal(t, "sales", ingested[0].Result.TableName)
	assert.Equal(t, 3, ingested[0].Result.RowCount)
	assert.FileExists(t, filepath.Join(ws, "pith.duckdb"))

	out, _, err = runCLI(t, "query", "SELECT region, SUM(amount) AS total FROM sales GROUP BY region ORDER BY region", "-f", "csv")
	require.NoError(t, err)
	assert.Equal(t, "region,total\n\"EU\",15\n\"US\",20\n", out)

	out, _, err = runCLI(t, "query", "tables", "-f", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `["sales"]`, out)

	out, _, err = runCLI(t, "ingest", "history", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"table": "sales"`)

	_, _, err = runCLI(t, "query", "SELECT * FROM nope")
	require.Error(t, err)

	_, _, err = runCLI(t, "chart", "validate", "--table", "sales", "--type", "bar", "--x", "region", "--y", "region", "--agg", "sum")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numeric Y-axis")

	out, _, err = runCLI(t, "chart", "plan", "--table", "sales", "--type", "bar", "--x", "region", "--y", "amount", "--agg", "sum", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"mark"`)
	assert.Contains(t, out, `"sql"`)

	_, _, err = runCLI(t, "export", "--format", "csv", "--table", "sales")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(ws, "sales_export.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "region,amount\n"))

	_, _, err = runCLI(t, "prefs", "set", "pith-analytics", "true")
	require.NoError(t, err)
	out, _, err = runCLI(t, "prefs", "get", "pith-analytics", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "true", strings.TrimSpace(out))

	_, _, err = runCLI(t, "prefs", "set", "pith-ai-last-model", "not-a-model")
	assert.Error(t, err)
}

func TestImportCSVExport(t *testing.T) {
	ws := testutil.SetupTestWorkspace(t)
	t.Chdir(ws)

	require.NoError(t, os.WriteFile(filepath.Join(ws, "people.csv"), []byte("name\nada\n"), 0600))
	_, _, err := runCLI(t, "import", "people.csv")
	require.NoError(t, err)

	out, _, err := runCLI(t, "query", "SELECT name FROM people", "-f", "csv")
	require.NoError(t, err)
	assert.Equal(t, "name\n\"ada\"\n", out)
}
