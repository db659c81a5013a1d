package workspace

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T, ttl time.Duration) (*Registry, Layout, string) {
	t.Helper()
	root := t.TempDir()
	layout := NewLayout(root)
	reg, err := OpenRegistry(layout, ttl, nil)
	require.NoError(t, err)
	return reg, layout, root
}

func TestRegistry_RegisterPrimary(t *testing.T) {
	reg, _, root := testRegistry(t, 0)

	ws, err := reg.RegisterPrimary(root)
	require.NoError(t, err)
	assert.Equal(t, KindPrimary, ws.Kind)

	got, ok := reg.Primary()
	require.True(t, ok)
	assert.Equal(t, ws.ID, got.ID)
}

func TestRegistry_SecondPrimaryRefused(t *testing.T) {
	reg, _, root := testRegistry(t, 0)

	_, err := reg.RegisterPrimary(root)
	require.NoError(t, err)

	other := t.TempDir()
	_, err = reg.RegisterPrimary(other)
	require.Error(t, err)
}

func TestRegistry_ReferenceIsolatedFromPrimary(t *testing.T) {
	reg, layout, root := testRegistry(t, time.Hour)

	primary, err := reg.RegisterPrimary(root)
	require.NoError(t, err)

	refRoot := t.TempDir()
	ref, err := reg.RegisterReference(refRoot)
	require.NoError(t, err)

	assert.NotEqual(t, primary.ID, ref.ID)
	assert.NotEqual(t, layout.StorePath(primary), layout.StorePath(ref))
}

func TestRegistry_ReferencingPrimaryRootKeepsPrimaryKind(t *testing.T) {
	reg, _, root := testRegistry(t, time.Hour)

	primary, err := reg.RegisterPrimary(root)
	require.NoError(t, err)

	// Registering the primary's own root as a reference must not
	// create a second store for the same tree.
	ws, err := reg.RegisterReference(root)
	require.NoError(t, err)
	assert.Equal(t, primary.ID, ws.ID)
	assert.Equal(t, KindPrimary, ws.Kind)

	stats := reg.Stats()
	assert.Equal(t, 0, stats.ReferenceCount)
}

func TestRegistry_PersistsAcrossReopen(t *testing.T) {
	reg, layout, root := testRegistry(t, time.Hour)

	ws, err := reg.RegisterPrimary(root)
	require.NoError(t, err)
	refRoot := t.TempDir()
	ref, err := reg.RegisterReference(refRoot)
	require.NoError(t, err)

	reopened, err := OpenRegistry(layout, time.Hour, nil)
	require.NoError(t, err)

	got, ok := reopened.Primary()
	require.True(t, ok)
	assert.Equal(t, ws.ID, got.ID)

	gotRef, ok := reopened.Lookup(ref.ID)
	require.True(t, ok)
	assert.Equal(t, KindReference, gotRef.Kind)
}

func TestRegistry_CorruptFileRebuilt(t *testing.T) {
	reg, layout, root := testRegistry(t, 0)
	_, err := reg.RegisterPrimary(root)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(layout.RegistryPath(), []byte("{not json"), 0o644))

	reopened, err := OpenRegistry(layout, 0, nil)
	require.NoError(t, err)
	_, ok := reopened.Primary()
	assert.False(t, ok, "corrupt registry starts empty")
}

func TestRegistry_CleanupExpired(t *testing.T) {
	reg, layout, root := testRegistry(t, time.Minute)

	_, err := reg.RegisterPrimary(root)
	require.NoError(t, err)
	ref, err := reg.RegisterReference(t.TempDir())
	require.NoError(t, err)

	// Materialize the reference's index dir so cleanup has something
	// to delete.
	require.NoError(t, os.MkdirAll(layout.IndexDir(ref.ID), 0o755))

	// Not yet expired.
	removed := reg.CleanupExpired(time.Now())
	assert.Empty(t, removed)

	removed = reg.CleanupExpired(time.Now().Add(2 * time.Minute))
	require.Equal(t, []string{ref.ID}, removed)

	_, ok := reg.Lookup(ref.ID)
	assert.False(t, ok)
	_, statErr := os.Stat(layout.IndexDir(ref.ID))
	assert.True(t, os.IsNotExist(statErr))

	// The primary never expires.
	_, ok = reg.Primary()
	assert.True(t, ok)
}

func TestRegistry_TouchRefreshesTTL(t *testing.T) {
	reg, _, root := testRegistry(t, time.Minute)

	_, err := reg.RegisterPrimary(root)
	require.NoError(t, err)
	ref, err := reg.RegisterReference(t.TempDir())
	require.NoError(t, err)

	reg.mu.RLock()
	before := *reg.references[ref.ID].ExpiresAt
	reg.mu.RUnlock()

	time.Sleep(5 * time.Millisecond)
	reg.Touch(ref.ID)

	reg.mu.RLock()
	after := *reg.references[ref.ID].ExpiresAt
	reg.mu.RUnlock()
	assert.True(t, after.After(before))
}

func TestRegistry_StatsAndCounts(t *testing.T) {
	reg, _, root := testRegistry(t, time.Hour)

	ws, err := reg.RegisterPrimary(root)
	require.NoError(t, err)
	reg.UpdateCounts(ws.ID, 120, 3400)

	stats := reg.Stats()
	require.NotNil(t, stats.Primary)
	assert.Equal(t, 120, stats.TotalFiles)
	assert.Equal(t, 3400, stats.TotalSymbols)
	assert.Len(t, stats.Entries, 1)
}

func TestCheckHealth(t *testing.T) {
	root := t.TempDir()
	layout := NewLayout(root)
	ws, err := Resolve(root, KindPrimary)
	require.NoError(t, err)

	results := CheckHealth(ws, layout)
	assert.True(t, Healthy(results))

	broken := Descriptor{ID: "x", Root: root + "/gone", Kind: KindPrimary}
	results = CheckHealth(broken, layout)
	assert.False(t, Healthy(results))
}
