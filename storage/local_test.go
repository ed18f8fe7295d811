package storage

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewStorage(ctx, StorageConfig{Type: StorageTypeLocal, LocalPath: t.TempDir()})
	require.NoError(t, err)

	id := uuid.New()
	path, err := s.Upload(ctx, id, "convenção do condomínio.txt", strings.NewReader("Art. 1 - Fica proibido"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, id.String()[:2]+"/"))
	assert.True(t, strings.HasSuffix(path, "convenção_do_condomínio.txt"))

	data, err := ReadAll(ctx, s, path)
	require.NoError(t, err)
	assert.Equal(t, "Art. 1 - Fica proibido", string(data))

	require.NoError(t, s.Delete(ctx, path))
	_, err = s.Download(ctx, path)
	assert.ErrorIs(t, err, ErrFileNotFound)

	require.NoError(t, s.Delete(ctx, path))
}

func TestGenerateStoragePathStripsDirectories(t *testing.T) {
	id := uuid.MustParse("12345678-1234-1234-1234-123456789abc")
	assert.Equal(t, "12/12345678-1234-1234-1234-123456789abc_regimento.pdf", generateStoragePath(id, "../../etc/regimento.pdf"))
}

func TestNewStorageUnknownType(t *testing.T) {
	_, err := NewStorage(context.Background(), StorageConfig{Type: "ftp"})
	assert.Error(t, err)

	_, err = NewStorage(context.Background(), StorageConfig{Type: StorageTypeS3})
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("estatuto.PDF"))
	assert.Equal(t, "text/plain", ContentType("ata.txt"))
	assert.Equal(t, "application/octet-stream", ContentType("planilha.xlsx"))
}

func TestLocalStorageDeleteRemovesEmptyShard(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	id := uuid.New()
	path, err := s.Upload(ctx, id, "ata.txt", strings.NewReader("Assembleia"))
	require.NoError(t, err)

	require.NoError(t, DeleteAll(ctx, s, []string{path, "", "ff/inexistente.txt"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestS3KeyPrefix(t *testing.T) {
	s := &S3Storage{prefix: "condolex"}
	assert.Equal(t, "condolex/ab/arquivo.pdf", s.key("ab/arquivo.pdf"))

	s = &S3Storage{}
	assert.Equal(t, "ab/arquivo.pdf", s.key("ab/arquivo.pdf"))
}
