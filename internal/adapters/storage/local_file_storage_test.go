package storage_adapter

import (
	"context"
	"io"
	"strings"
	"testing"

	"property-import-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	content := "external_id,title\nA-1,Flat\n"
	require.NoError(t, s.Save(ctx, "imports/file-1.csv", strings.NewReader(content), int64(len(content)), "text/csv"))

	rc, err := s.Open(ctx, "imports/file-1.csv")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, content, string(got))

	require.NoError(t, s.Delete(ctx, "imports/file-1.csv"))
	_, err = s.Open(ctx, "imports/file-1.csv")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)

	// повторное удаление не ошибка
	assert.NoError(t, s.Delete(ctx, "imports/file-1.csv"))
}

func TestLocalFileStorage_KeyCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalFileStorage(dir)
	require.NoError(t, err)

	p, err := s.path("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, dir))

	_, err = s.path("")
	assert.Error(t, err)
}

func TestLocalFileStorage_CancelledSave(t *testing.T) {
	s, err := NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Save(ctx, "x.csv", strings.NewReader("a"), 1, "")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.Open(context.Background(), "x.csv")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}
