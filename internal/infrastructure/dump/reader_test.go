package dump

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lines = "{\"code\":\"12345678\"}\n{\"code\":\"87654321\"}\n"

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestNewReader_Plain(t *testing.T) {
	r, err := NewReader(strings.NewReader(lines))
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, lines, string(data))
}

func TestNewReader_Gzip(t *testing.T) {
	r, err := NewReader(bytes.NewReader(gzipped(t, lines)))
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, lines, string(data))
}

func TestNewReader_Empty(t *testing.T) {
	r, err := NewReader(strings.NewReader(""))
	require.NoError(t, err)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestOpen_DetectsGzipByContent(t *testing.T) {
	dir := t.TempDir()
	// no .gz suffix on purpose
	path := filepath.Join(dir, "products.jsonl")
	require.NoError(t, os.WriteFile(path, gzipped(t, lines), 0o600))

	r, err := Open(path)
	require.NoError(t, err)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, lines, string(data))
	assert.NoError(t, r.Close())
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.jsonl.gz"))
	assert.Error(t, err)
}
