package leveldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelDBMemPutGetDelete(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("v")))

	ok, err := db.Has([]byte("k"))
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

func TestLevelDBMemBatchAndReplay(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()

	b := db.NewBatch()
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	require.NoError(t, b.Put([]byte("b"), []byte("2")))
	require.NoError(t, b.Write())

	v, err := db.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	mirror, err := NewMem()
	require.NoError(t, err)
	defer mirror.Close()

	b2 := db.NewBatch()
	require.NoError(t, b2.Put([]byte("a"), []byte("1")))
	require.NoError(t, b2.Put([]byte("b"), []byte("2")))
	require.NoError(t, b2.Replay(mirror))

	v, err = mirror.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)
}
