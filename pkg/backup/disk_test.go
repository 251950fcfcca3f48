package backup_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/downfa11-org/go-backup/pkg/backup"
	"github.com/downfa11-org/go-backup/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreSurvivesReopen(t *testing.T) {
	codecs := []util.Codec{util.CodecNone, util.CodecGzip, util.CodecSnappy, util.CodecLZ4}

	for _, codec := range codecs {
		t.Run(codec.String(), func(t *testing.T) {
			dir := t.TempDir()
			payload := []byte("segment payload segment payload segment payload")

			s, err := backup.NewDiskStore(dir, 1024, codec)
			require.NoError(t, err)
			require.NoError(t, s.Write(7, 0, payload))
			require.NoError(t, s.Commit(7))
			require.NoError(t, s.Write(8, 0, []byte("never committed")))
			require.NoError(t, s.Close())

			reopened, err := backup.NewDiskStore(dir, 1024, util.CodecNone)
			require.NoError(t, err)
			defer reopened.Close()

			assert.Equal(t, []uint64{7}, reopened.List())
			data, err := reopened.Read(7)
			require.NoError(t, err)
			assert.Equal(t, payload, data)

			st := reopened.Stats()
			assert.Equal(t, 1, st.Segments)
			assert.Equal(t, int64(len(payload)), st.Bytes)
		})
	}
}

func TestDiskStoreDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	s, err := backup.NewDiskStore(dir, 1024, util.CodecNone)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(3, 0, []byte("important bytes")))
	require.NoError(t, s.Commit(3))

	path := filepath.Join(dir, "segment_3.seg")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0644))

	_, err = s.Read(3)
	assert.True(t, errors.Is(err, backup.ErrChecksumMismatch), "got %v", err)
}

func TestDiskStoreFreeRemovesFile(t *testing.T) {
	dir := t.TempDir()
	s, err := backup.NewDiskStore(dir, 1024, util.CodecLZ4)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(5, 0, []byte("bytes")))
	require.NoError(t, s.Commit(5))
	path := filepath.Join(dir, "segment_5.seg")
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, s.Free(5))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "segment file should be removed")
	assert.Empty(t, s.List())
}

func TestDiskStoreSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_1.seg.tmp"), []byte("partial"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_2.seg"), []byte("xx"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_abc.seg"), []byte("xx"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("xx"), 0644))

	s, err := backup.NewDiskStore(dir, 1024, util.CodecNone)
	require.NoError(t, err)
	defer s.Close()

	assert.Empty(t, s.List())
	_, err = os.Stat(filepath.Join(dir, "segment_1.seg.tmp"))
	assert.True(t, os.IsNotExist(err), "partial files are removed on open")
}
