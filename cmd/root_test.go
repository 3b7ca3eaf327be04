package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeDocument(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestValidateCommand(t *testing.T) {
	path := writeDocument(t, `
name: web
region: us-east-1
resources:
  - type: vpc
    name: net
    vpc:
      cidr_block: 10.0.0.0/16
`)

	out, err := executeCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Document web is valid (1 resources)")
}

func TestValidateCommandRejectsBadDocument(t *testing.T) {
	path := writeDocument(t, `
name: web
resources:
  - type: vpc
    name: net
`)

	_, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing vpc spec block")
}

func TestValidateCommandMissingFile(t *testing.T) {
	_, err := executeCommand(t, "validate", "/nonexistent/doc.yaml")
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "amarra")
}
