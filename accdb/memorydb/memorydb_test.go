package memorydb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemDBPutGetHasDelete(t *testing.T) {
	db := New()

	ok, err := db.Has([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))

	ok, err = db.Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, db.Delete([]byte("k")))
	v, err = db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMemDBBatchWriteAndReplay(t *testing.T) {
	db := New()
	b := db.NewBatch()
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	require.NoError(t, b.Put([]byte("b"), []byte("2")))
	require.NoError(t, b.Delete([]byte("c")))
	assert.Positive(t, b.ValueSize())

	require.NoError(t, b.Write())
	v, err := db.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	mirror := New()
	require.NoError(t, b.Replay(mirror))
	v, err = mirror.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)

	b.Reset()
	assert.Equal(t, 0, b.ValueSize())
}

func TestMemDBOperationsAfterCloseFail(t *testing.T) {
	db := New()
	require.NoError(t, db.Close())

	_, err := db.Get([]byte("k"))
	assert.Error(t, err)
	assert.Error(t, db.Put([]byte("k"), []byte("v")))
}
