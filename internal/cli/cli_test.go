package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodCSV = "House Name,House Address,City,State,Room Name,Item Name,Price\n" +
	"Main,1 Elm St,Springfield,Illinois,Den,Lamp,$20\n" +
	"Main,1 Elm St,Springfield,IL,Den,Sofa,-3\n"

const badCSV = "House Address,City,State,Room Name,Item Name,Brand\n" +
	"1 Elm St,Springfield,IL,Den,,Acme\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "error")

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPreviewCommand(t *testing.T) {
	out, err := run(t, "preview", writeFile(t, "items.csv", goodCSV), "--owner", "42")
	require.NoError(t, err)

	assert.Contains(t, out, "Houses: 1")
	assert.Contains(t, out, "Items:  2")
	assert.Contains(t, out, "Row 2: negative price -3 was set to 0")
}

func TestPreviewCommand_JSON(t *testing.T) {
	out, err := run(t, "preview", writeFile(t, "items.csv", goodCSV), "--owner", "42", "--json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"warnings"`)
}

func TestPreviewCommand_RequiresOwner(t *testing.T) {
	_, err := run(t, "preview", writeFile(t, "items.csv", goodCSV))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner")
}

func TestCommitCommand_DryRun(t *testing.T) {
	out, err := run(t, "commit", writeFile(t, "items.csv", goodCSV), "--owner", "42",
		"--create-houses", "--create-rooms", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "[dry run] Import completed: 1 house, 1 room, 2 items created. 0 items updated, 0 items skipped.")
}

func TestCommitCommand_Diagnostics(t *testing.T) {
	out, err := run(t, "commit", writeFile(t, "items.csv", goodCSV), "--owner", "42", "--diagnostics")
	require.NoError(t, err)
	assert.Contains(t, out, "2 items skipped.")
	assert.Contains(t, out, "row 1:")
}

func TestCommitCommand_RefusesRowErrors(t *testing.T) {
	out, err := run(t, "commit", writeFile(t, "items.csv", badCSV), "--owner", "42", "--create-houses")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing was imported")
	assert.Contains(t, out, "Row 1: Item name is required")
}

func TestCommitCommand_UnsupportedFile(t *testing.T) {
	_, err := run(t, "commit", writeFile(t, "items.xlsx", "PK"), "--owner", "42", "--dry-run")
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "memory schema is up to date")
}
