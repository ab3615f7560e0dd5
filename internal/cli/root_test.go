package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(args ...string) (string, error) {
	cmd := NewRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	out, err := executeCommand("--help")
	require.NoError(t, err)
	assert.Contains(t, out, "kestrel")
	assert.Contains(t, out, "run")
	assert.Contains(t, out, "log")
}

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	_, err := executeCommand("--format", "xml", "log", "--db", "x.db", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown output format "xml"`)
}

func TestRootCommand_UnknownSubcommand(t *testing.T) {
	_, err := executeCommand("bogus")
	assert.Error(t, err)
}
