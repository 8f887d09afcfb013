package main

import (
	"context"
	"encoding/json"
	"math"

	"go.uber.org/zap"
)

type BookServiceProvider interface {
	Create(ctx context.Context, book Book) (Book, error)
	GetOne(ctx context.Context, id int64) (Book, error)
	Update(ctx context.Context, id int64, book Book) (Book, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, query BookQuery) (BookPage, error)
	Bookshelves(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (BookStats, error)
	Import(ctx context.Context, books []Book) ImportReport
	Export(ctx context.Context, fn func(Book) error) error
}

// ImportIssue reports why one item of a bulk import was rejected.
type ImportIssue struct {
	Index  int               `json:"index"`
	Fields map[string]string `json:"fields,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// ImportReport summarizes the outcome of a bulk import call.
type ImportReport struct {
	Imported int           `json:"imported"`
	Failed   int           `json:"failed"`
	Errors   []ImportIssue `json:"errors,omitempty"`
}

type BookService struct {
	logger  *zap.Logger
	config  *Config
	clock   Clocker
	storage BookStorage
	cache   Cacher
	queue   Queuer
}

func NewBookService(logger *zap.Logger, config *Config, clock Clocker, storage BookStorage, cache Cacher, queue Queuer) BookServiceProvider {
	return &BookService{
		logger:  logger,
		config:  config,
		clock:   clock,
		storage: storage,
		cache:   cache,
		queue:   queue,
	}
}

// Create stores a new book record. A missing id is allocated from the
// atomic counter, a client-supplied id reserves the counter range so
// later allocations cannot collide with it.
func (bs *BookService) Create(ctx context.Context, book Book) (Book, error) {
	if book.ID == 0 {
		id, err := bs.storage.NextID(ctx)
		if err != nil {
			return book, err
		}
		book.ID = id
	} else if err := bs.storage.ReserveID(ctx, book.ID); err != nil {
		bs.logger.Error("service: failed to reserve client-supplied id", zap.Int64("book.id", book.ID), zap.Error(err))
	}

	if book.DateAdded.IsZero() {
		book.DateAdded = bs.clock.Now().UTC()
	}
	if book.Shelf == "" {
		book.Shelf = ShelfToRead
	}
	book.BEq = bs.bookEq(ctx, book.Pages)

	if err := bs.storage.Add(ctx, book); err != nil {
		return book, err
	}
	bs.cache.Invalidate(ctx)
	bs.enqueue(ctx, CreateQueue, book)
	return book, nil
}

func (bs *BookService) GetOne(ctx context.Context, id int64) (Book, error) {
	return bs.storage.GetOne(ctx, id)
}

// Update performs a full replace-and-return. The id always comes from the
// URL and the original added date survives a payload which omits it.
func (bs *BookService) Update(ctx context.Context, id int64, book Book) (Book, error) {
	current, err := bs.storage.GetOne(ctx, id)
	if err != nil {
		return book, err
	}

	book.ID = id
	if book.DateAdded.IsZero() {
		book.DateAdded = current.DateAdded
	}
	if book.Shelf == "" {
		book.Shelf = ShelfToRead
	}
	book.BEq = bs.bookEq(ctx, book.Pages)

	updated, err := bs.storage.Replace(ctx, id, book)
	if err != nil {
		return updated, err
	}
	bs.cache.Invalidate(ctx)
	bs.enqueue(ctx, UpdateQueue, updated)
	return updated, nil
}

func (bs *BookService) Delete(ctx context.Context, id int64) error {
	if err := bs.storage.Delete(ctx, id); err != nil {
		return err
	}
	bs.cache.Invalidate(ctx)
	bs.enqueue(ctx, DeleteQueue, Book{ID: id})
	return nil
}

// List serves one page of records, read through the response cache.
func (bs *BookService) List(ctx context.Context, query BookQuery) (BookPage, error) {
	var page BookPage
	key := "list:" + query.CacheKey()
	if raw, ok := bs.cache.Get(ctx, key); ok {
		if err := json.Unmarshal(raw, &page); err == nil {
			return page, nil
		}
	}

	page, err := bs.storage.List(ctx, query)
	if err != nil {
		return page, err
	}
	bs.fill(ctx, key, page)
	return page, nil
}

// Bookshelves serves the distinct shelf tags, read through the response cache.
func (bs *BookService) Bookshelves(ctx context.Context) ([]string, error) {
	shelves := []string{}
	if raw, ok := bs.cache.Get(ctx, "bookshelves"); ok {
		if err := json.Unmarshal(raw, &shelves); err == nil {
			return shelves, nil
		}
	}

	shelves, err := bs.storage.Bookshelves(ctx)
	if err != nil {
		return nil, err
	}
	bs.fill(ctx, "bookshelves", shelves)
	return shelves, nil
}

// Stats serves the reporting view, read through the response cache.
func (bs *BookService) Stats(ctx context.Context) (BookStats, error) {
	var stats BookStats
	if raw, ok := bs.cache.Get(ctx, "stats"); ok {
		if err := json.Unmarshal(raw, &stats); err == nil {
			return stats, nil
		}
	}

	stats, err := bs.storage.Stats(ctx)
	if err != nil {
		return stats, err
	}
	bs.fill(ctx, "stats", stats)
	return stats, nil
}

// Import stores a batch of records one by one and collects per-item
// failures instead of aborting the whole batch.
func (bs *BookService) Import(ctx context.Context, books []Book) ImportReport {
	report := ImportReport{}
	for i, book := range books {
		if book.Shelf == "" {
			book.Shelf = ShelfToRead
		}
		v := NewValidator()
		ValidateBook(v, &book, true)
		if !v.Valid() {
			report.Failed++
			report.Errors = append(report.Errors, ImportIssue{Index: i, Fields: v.Errors})
			continue
		}
		if _, err := bs.Create(ctx, book); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, ImportIssue{Index: i, Error: err.Error()})
			continue
		}
		report.Imported++
	}
	return report
}

func (bs *BookService) Export(ctx context.Context, fn func(Book) error) error {
	return bs.storage.Export(ctx, fn)
}

// bookEq derives the comparative length value of a record: its page count
// relative to the current collection average, rounded to two decimals.
// An empty collection yields 1 so the first record is its own baseline.
func (bs *BookService) bookEq(ctx context.Context, pages int) float64 {
	avg, err := bs.storage.AveragePages(ctx)
	if err != nil {
		bs.logger.Error("service: failed to compute average pages", zap.Error(err))
		return 0
	}
	if avg <= 0 {
		return 1
	}
	return math.Round(float64(pages)/avg*100) / 100
}

func (bs *BookService) enqueue(ctx context.Context, qid string, book Book) {
	if err := bs.queue.Push(ctx, qid, book); err != nil {
		bs.logger.Error("service: failed to push book to queue", zap.String("qid", qid), zap.Error(err))
	}
}

func (bs *BookService) fill(ctx context.Context, key string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		bs.logger.Error("service: failed to marshal cache payload", zap.String("cache.key", key), zap.Error(err))
		return
	}
	bs.cache.Set(ctx, key, raw)
}
