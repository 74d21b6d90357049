package bolt

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/wifiprov/store"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	require.NoError(t, err)
	return s
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "creds.db"))
	defer s.Close()

	_, err := s.Get("network-ssid")
	assert.ErrorIs(t, err, store.ErrNotFound)

	ok, err := s.Has("network-ssid")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "creds.db")

	s := openTestStore(t, path)
	require.NoError(t, s.Put("network-bssid", []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}))
	require.NoError(t, s.Close())

	s = openTestStore(t, path)
	defer s.Close()

	v, err := s.Get("network-bssid")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, v)

	ok, err := s.Has("network-bssid")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPutBatch(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "creds.db"))
	defer s.Close()

	err := s.PutBatch([]store.Entry{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
	})
	require.NoError(t, err)

	for key, want := range map[string]string{"a": "1", "b": "2"} {
		v, err := s.Get(key)
		require.NoError(t, err)
		assert.Equal(t, want, string(v))
	}
}

func TestPutBatchEmptyKeyRollsBack(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "creds.db"))
	defer s.Close()

	// bbolt rejects empty keys, which aborts the whole transaction.
	err := s.PutBatch([]store.Entry{
		{Key: "a", Value: []byte("1")},
		{Key: "", Value: []byte("2")},
	})
	require.Error(t, err)

	_, err = s.Get("a")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
