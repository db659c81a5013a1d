package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symdex-dev/symdex/internal/workspace"
)

func TestIndexCommand(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "main.go", "package main\n\nfunc Greet(name string) string { return name }\n")

	out, err := runCommand(t, "index", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed")
	assert.Contains(t, out, "new 1")

	// The data directory and store exist afterwards.
	layout := workspace.NewLayout(dir)
	_, statErr := os.Stat(layout.PrimaryStorePath())
	assert.NoError(t, statErr)
}

func TestIndexCommandIncremental(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "a.go", "package a\n\nfunc A() {}\n")

	_, err := runCommand(t, "index", dir)
	require.NoError(t, err)

	out, err := runCommand(t, "index", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "new 0")
	assert.Contains(t, out, "unchanged 1")
}

func TestIndexCommandReference(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "main.go", "package main\n\nfunc M() {}\n")
	refDir := t.TempDir()
	writeGoFile(t, refDir, "lib.go", "package lib\n\nfunc L() {}\n")

	t.Chdir(dir)
	_, err := runCommand(t, "index")
	require.NoError(t, err)

	out, err := runCommand(t, "index", "--reference", refDir)
	require.NoError(t, err)
	assert.Contains(t, out, "reference workspace")
	assert.Contains(t, out, "--workspace")

	// The reference index lives under the primary data dir, not in the
	// reference tree.
	_, statErr := os.Stat(filepath.Join(refDir, workspace.DataDirName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSearchCommand(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "main.go", "package main\n\nfunc Greet(name string) string { return name }\n")
	t.Chdir(dir)

	_, err := runCommand(t, "index")
	require.NoError(t, err)

	out, err := runCommand(t, "search", "Greet")
	require.NoError(t, err)
	assert.Contains(t, out, "Greet")
	assert.Contains(t, out, "main.go")
}

func TestSearchCommandJSON(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "main.go", "package main\n\nfunc Greet() {}\n")
	t.Chdir(dir)

	_, err := runCommand(t, "index")
	require.NoError(t, err)

	out, err := runCommand(t, "search", "Greet", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name"`)
	assert.Contains(t, out, `"Greet"`)
}

func TestSearchCommandSemantic(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "cfg.go",
		"package cfg\n\n// ParseConfigFile reads the config file.\nfunc ParseConfigFile(path string) error { return nil }\n")
	t.Chdir(dir)

	_, err := runCommand(t, "index")
	require.NoError(t, err)

	out, err := runCommand(t, "search", "parse config file", "--semantic", "--threshold", "0.2")
	require.NoError(t, err)
	assert.Contains(t, out, "ParseConfigFile")
	assert.Contains(t, out, "similarity")
}

func TestSearchWithoutIndexFails(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := runCommand(t, "search", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestStatusCommand(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "main.go", "package main\n\nfunc M() {}\n")
	t.Chdir(dir)

	_, err := runCommand(t, "index")
	require.NoError(t, err)

	out, err := runCommand(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "workspace")
	assert.Contains(t, out, "files")
	assert.Contains(t, out, "symbols")
}

func TestStatusCommandJSON(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "main.go", "package main\n\nfunc M() {}\n")
	t.Chdir(dir)

	_, err := runCommand(t, "index")
	require.NoError(t, err)

	out, err := runCommand(t, "status", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"workspace_id"`)
	assert.Contains(t, out, `"healthy": true`)
}

func TestStatusWithoutIndexFails(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := runCommand(t, "status")
	require.Error(t, err)
}
