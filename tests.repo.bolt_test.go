package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestBoltMirror returns a new mirror store in a temporary path.
func newTestBoltMirror() (*boltMirrorStorage, error) {
	f, err := os.CreateTemp("", "tmp.bolt.db-")
	if err != nil {
		return nil, err
	}
	f.Close()
	testConfig := &Config{
		BoltDB: BoltDBConfig{
			FilePath:   f.Name(),
			Timeout:    5 * time.Second,
			BucketName: "test.books",
		},
	}

	client, err := GetBoltDBClient(testConfig)

	return &boltMirrorStorage{
		logger: zap.NewNop(),
		client: client,
		config: &testConfig.BoltDB,
	}, err
}

// closeTestBoltMirror closes the temporary store and removes the data file.
func (bs *boltMirrorStorage) closeTestBoltMirror() error {
	defer os.Remove(bs.config.FilePath)
	return bs.Close()
}

// Ensure the mirror can store and retrieve a book record.
func TestBoltMirror_PutBook(t *testing.T) {
	bs, err := newTestBoltMirror()
	require.NoError(t, err, "failed in creating a test bolt store")
	defer bs.closeTestBoltMirror()

	b := Book{ID: 7, Title: "Bolt test book title", Shelf: ShelfToRead}
	err = bs.Put(context.TODO(), b)
	assert.NoError(t, err)

	book, err := bs.GetOne(context.TODO(), 7)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), book.ID)
	assert.Equal(t, "Bolt test book title", book.Title)
	assert.Equal(t, ShelfToRead, book.Shelf)
}

// Ensure a second put replaces the mirrored copy.
func TestBoltMirror_ReplaceBook(t *testing.T) {
	bs, err := newTestBoltMirror()
	require.NoError(t, err, "failed in creating a test bolt store")
	defer bs.closeTestBoltMirror()

	err = bs.Put(context.TODO(), Book{ID: 7, Title: "First title"})
	assert.NoError(t, err)
	err = bs.Put(context.TODO(), Book{ID: 7, Title: "Second title"})
	assert.NoError(t, err)

	book, err := bs.GetOne(context.TODO(), 7)
	assert.NoError(t, err)
	assert.Equal(t, "Second title", book.Title)
}

// Ensure the mirror can remove a book record.
func TestBoltMirror_DeleteBook(t *testing.T) {
	bs, err := newTestBoltMirror()
	require.NoError(t, err, "failed in creating a test bolt store")
	defer bs.closeTestBoltMirror()

	err = bs.Put(context.TODO(), Book{ID: 7, Title: "Bolt test book title"})
	assert.NoError(t, err)

	err = bs.Delete(context.TODO(), 7)
	assert.NoError(t, err)

	_, err = bs.GetOne(context.TODO(), 7)
	assert.ErrorIs(t, err, ErrBookNotFound)

	// deleting an absent record is a no-op.
	assert.NoError(t, bs.Delete(context.TODO(), 404))
}

// Ensure an unknown id yields the dedicated error.
func TestBoltMirror_GetUnknownBook(t *testing.T) {
	bs, err := newTestBoltMirror()
	require.NoError(t, err, "failed in creating a test bolt store")
	defer bs.closeTestBoltMirror()

	_, err = bs.GetOne(context.TODO(), 404)
	assert.ErrorIs(t, err, ErrBookNotFound)
}
