package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/playbot/internal/browser/browsertest"
)

func TestName(t *testing.T) {
	assert.Equal(t, "process_error_12_34", Name("process_error", "12/34"))
	assert.Equal(t, "failed_로그인", Name("failed", "로그인"))
	assert.Equal(t, "a_b", Name("a", "", "b"))
	assert.Equal(t, "screenshot", Name("//"))
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	store := NewStore(dir)
	page := browsertest.NewPage()

	path, err := store.Save(context.Background(), page, "login error")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "login_error.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, browsertest.PNG(4, 4), data)
	assert.Equal(t, 1, page.Shots)
}

func TestSaveError(t *testing.T) {
	page := browsertest.NewPage()
	page.ShotErr = errors.New("target closed")

	_, err := NewStore(t.TempDir()).Save(context.Background(), page, "x")
	assert.ErrorContains(t, err, "target closed")
}

func TestNilStore(t *testing.T) {
	var store *Store
	path, err := store.Save(context.Background(), browsertest.NewPage(), "x")
	assert.NoError(t, err)
	assert.Empty(t, path)
}
