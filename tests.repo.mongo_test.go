package main

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

func startMongoDockerContainer(t *testing.T) (string, func()) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("Failed to start Dockertest: %+v", err)
	}

	err = pool.Client.Ping()
	if err != nil {
		t.Fatalf("Could not connect to Docker: %+v", err)
	}

	resource, err := pool.Run("mongo", "6.0", nil)
	if err != nil {
		t.Fatalf("Failed to start mongo: %+v", err)
	}

	// build uri the container is listening on
	uri := fmt.Sprintf("mongodb://%s", net.JoinHostPort("localhost", resource.GetPort("27017/tcp")))

	// ensure to wait for the container to be ready
	err = pool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, e := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if e != nil {
			return e
		}
		defer client.Disconnect(ctx)
		return client.Ping(ctx, readpref.Primary())
	})

	if err != nil {
		t.Fatalf("Failed to ping Mongo: %+v", err)
	}

	destroyFunc := func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Failed to purge resource: %+v", err)
		}
	}

	return uri, destroyFunc
}

// newTestMongoStorage connects to the container and provides a storage
// bound to its own database so tests stay isolated from each other.
func newTestMongoStorage(t *testing.T, uri, database string) BookStorage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() {
		dCtx, dCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dCancel()
		_ = client.Disconnect(dCtx)
	})

	storage, err := NewMongoBookStorage(ctx, zap.NewNop(), client, database)
	require.NoError(t, err)
	return storage
}

func date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

// seedTestBooks inserts a small fixed catalog used by the read tests.
func seedTestBooks(t *testing.T, storage BookStorage) {
	t.Helper()
	books := []Book{
		{ID: 1, Title: "Dune", Author: "Frank Herbert", Pages: 412, Rating: 5, Shelf: ShelfRead, DateRead: date(2023, 3, 15), DateAdded: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Bookshelves: []string{"science-fiction", "classics"}},
		{ID: 2, Title: "Dune Messiah", Author: "Frank Herbert", Pages: 256, Rating: 4, Shelf: ShelfRead, DateRead: date(2023, 6, 30), DateAdded: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), Bookshelves: []string{"science-fiction"}},
		{ID: 3, Title: "Hyperion", Author: "Dan Simmons", Pages: 482, Rating: 4.5, Shelf: ShelfRead, DateRead: date(2023, 7, 1), DateAdded: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 4, Title: "The Hobbit", Author: "J.R.R. Tolkien", Pages: 310, Rating: 0, Shelf: ShelfCurrentlyReading, DateAdded: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), Bookshelves: []string{"fantasy"}},
		{ID: 5, Title: "A Dance with Dragons", Author: "George R.R. Martin", Pages: 1016, Rating: 0, Shelf: ShelfToRead, DateAdded: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, book := range books {
		require.NoError(t, storage.Add(context.Background(), book))
	}
}

//nolint:funlen
func TestMongoBookStorage(t *testing.T) {
	uri, destroyFunc := startMongoDockerContainer(t)
	defer destroyFunc()
	ctx := context.Background()

	t.Run("CRUD", func(t *testing.T) {
		storage := newTestMongoStorage(t, uri, "bookshelf_test_crud")

		book := Book{ID: 7, Title: "Dune", Author: "Frank Herbert", Pages: 412, Shelf: ShelfToRead, DateAdded: time.Now().UTC().Truncate(time.Millisecond)}
		assert.NoError(t, storage.Add(ctx, book))

		// a second insert with the same id is a duplicate.
		assert.ErrorIs(t, storage.Add(ctx, book), ErrDuplicateBookID)

		got, err := storage.GetOne(ctx, 7)
		assert.NoError(t, err)
		assert.Equal(t, "Dune", got.Title)
		assert.Equal(t, int64(7), got.ID)

		_, err = storage.GetOne(ctx, 404)
		assert.ErrorIs(t, err, ErrBookNotFound)

		book.Title = "Dune Messiah"
		book.Shelf = ShelfRead
		replaced, err := storage.Replace(ctx, 7, book)
		assert.NoError(t, err)
		assert.Equal(t, "Dune Messiah", replaced.Title)
		assert.Equal(t, ShelfRead, replaced.Shelf)

		_, err = storage.Replace(ctx, 404, book)
		assert.ErrorIs(t, err, ErrBookNotFound)

		assert.NoError(t, storage.Delete(ctx, 7))
		assert.ErrorIs(t, storage.Delete(ctx, 7), ErrBookNotFound)
	})

	t.Run("Counters", func(t *testing.T) {
		storage := newTestMongoStorage(t, uri, "bookshelf_test_counters")

		first, err := storage.NextID(ctx)
		assert.NoError(t, err)
		second, err := storage.NextID(ctx)
		assert.NoError(t, err)
		assert.Equal(t, first+1, second)

		// reserving a high id moves the counter past it.
		assert.NoError(t, storage.ReserveID(ctx, 100))
		next, err := storage.NextID(ctx)
		assert.NoError(t, err)
		assert.Equal(t, int64(101), next)

		// reserving a lower id never rewinds the counter.
		assert.NoError(t, storage.ReserveID(ctx, 5))
		next, err = storage.NextID(ctx)
		assert.NoError(t, err)
		assert.Equal(t, int64(102), next)
	})

	t.Run("List", func(t *testing.T) {
		storage := newTestMongoStorage(t, uri, "bookshelf_test_list")
		seedTestBooks(t, storage)

		t.Run("pagination partitions the collection", func(t *testing.T) {
			seen := map[int64]bool{}
			for p := int64(1); p <= 3; p++ {
				page, err := storage.List(ctx, BookQuery{Page: p, Limit: 2, Sort: "id", Order: "asc"})
				assert.NoError(t, err)
				assert.Equal(t, int64(5), page.TotalItems)
				assert.Equal(t, int64(3), page.TotalPages)
				assert.Equal(t, p, page.CurrentPage)
				for _, b := range page.Data {
					assert.False(t, seen[b.ID], "book %d served twice", b.ID)
					seen[b.ID] = true
				}
			}
			assert.Len(t, seen, 5)
		})

		t.Run("page beyond the end is empty", func(t *testing.T) {
			page, err := storage.List(ctx, BookQuery{Page: 9, Limit: 2, Sort: "id", Order: "asc"})
			assert.NoError(t, err)
			assert.Empty(t, page.Data)
			assert.Equal(t, int64(5), page.TotalItems)
		})

		t.Run("shelf filter", func(t *testing.T) {
			page, err := storage.List(ctx, BookQuery{Page: 1, Limit: 10, Sort: "id", Order: "asc", Shelf: ShelfRead})
			assert.NoError(t, err)
			assert.Equal(t, int64(3), page.TotalItems)
		})

		t.Run("search is case-insensitive on title and author", func(t *testing.T) {
			page, err := storage.List(ctx, BookQuery{Page: 1, Limit: 10, Sort: "id", Order: "asc", Search: "dune"})
			assert.NoError(t, err)
			assert.Equal(t, int64(2), page.TotalItems)

			page, err = storage.List(ctx, BookQuery{Page: 1, Limit: 10, Sort: "id", Order: "asc", Search: "TOLKIEN"})
			assert.NoError(t, err)
			assert.Equal(t, int64(1), page.TotalItems)
			assert.Equal(t, "The Hobbit", page.Data[0].Title)
		})

		t.Run("rating range is inclusive", func(t *testing.T) {
			min, max := 4.0, 4.5
			page, err := storage.List(ctx, BookQuery{Page: 1, Limit: 10, Sort: "id", Order: "asc", MinRating: &min, MaxRating: &max})
			assert.NoError(t, err)
			assert.Equal(t, int64(2), page.TotalItems)
		})

		t.Run("date range covers the whole end day", func(t *testing.T) {
			start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
			end := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)
			page, err := storage.List(ctx, BookQuery{Page: 1, Limit: 10, Sort: "id", Order: "asc", StartDate: &start, EndDate: &end})
			assert.NoError(t, err)
			// Dune (march) and Dune Messiah (read on the end day itself).
			assert.Equal(t, int64(2), page.TotalItems)
		})

		t.Run("sort order", func(t *testing.T) {
			page, err := storage.List(ctx, BookQuery{Page: 1, Limit: 10, Sort: "pages", Order: "desc"})
			assert.NoError(t, err)
			assert.Equal(t, int64(5), page.TotalItems)
			assert.Equal(t, 1016, page.Data[0].Pages)
			assert.Equal(t, 256, page.Data[len(page.Data)-1].Pages)
		})
	})

	t.Run("Reporting", func(t *testing.T) {
		storage := newTestMongoStorage(t, uri, "bookshelf_test_reporting")
		seedTestBooks(t, storage)

		t.Run("stats aggregations", func(t *testing.T) {
			stats, err := storage.Stats(ctx)
			assert.NoError(t, err)
			assert.Equal(t, int64(5), stats.TotalBooks)
			assert.Equal(t, int64(3), stats.Read)
			assert.Equal(t, int64(1), stats.CurrentlyReading)
			assert.Equal(t, int64(1), stats.ToRead)
			assert.Equal(t, int64(412+256+482), stats.PagesRead)
			assert.InDelta(t, (5.0+4.0+4.5)/3, stats.AverageRating, 0.0001)
			assert.NotEmpty(t, stats.TopAuthors)
			assert.Equal(t, "Frank Herbert", stats.TopAuthors[0].Author)
			assert.Equal(t, int64(2), stats.TopAuthors[0].Count)
		})

		t.Run("stats on empty collection", func(t *testing.T) {
			empty := newTestMongoStorage(t, uri, "bookshelf_test_empty")
			stats, err := empty.Stats(ctx)
			assert.NoError(t, err)
			assert.Zero(t, stats.TotalBooks)
			assert.Zero(t, stats.PagesRead)
			assert.Zero(t, stats.AverageRating)
			assert.Empty(t, stats.TopAuthors)
		})

		t.Run("distinct bookshelves are sorted", func(t *testing.T) {
			shelves, err := storage.Bookshelves(ctx)
			assert.NoError(t, err)
			assert.Equal(t, []string{"classics", "fantasy", "science-fiction"}, shelves)
		})

		t.Run("average pages", func(t *testing.T) {
			avg, err := storage.AveragePages(ctx)
			assert.NoError(t, err)
			assert.InDelta(t, float64(412+256+482+310+1016)/5, avg, 0.0001)

			empty := newTestMongoStorage(t, uri, "bookshelf_test_empty_avg")
			avg, err = empty.AveragePages(ctx)
			assert.NoError(t, err)
			assert.Zero(t, avg)
		})

		t.Run("export walks ids in order", func(t *testing.T) {
			var ids []int64
			err := storage.Export(ctx, func(book Book) error {
				ids = append(ids, book.ID)
				return nil
			})
			assert.NoError(t, err)
			assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)
		})
	})
}
