package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpen(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	ref, err := store.Save(context.Background(), strings.NewReader("jpeg bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, ".jpg"), "reference %q should carry the extension", ref)

	rc, contentType, err := store.Open(context.Background(), ref)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
	assert.Equal(t, "image/jpeg", contentType)
}

func TestSaveRejectsUnsupportedType(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), strings.NewReader("gif"), "image/gif")
	assert.Error(t, err)
}

func TestOpenRejectsTraversal(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	for _, ref := range []string{"../secret.jpg", "/etc/passwd", ".hidden"} {
		_, _, err := store.Open(context.Background(), ref)
		assert.Error(t, err, "reference %q must be rejected", ref)
	}
}

func TestOpenUnknownReference(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Open(context.Background(), "7b1d4c0a-missing.png")
	assert.Error(t, err)
}
