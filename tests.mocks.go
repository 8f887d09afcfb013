package main

import (
	"context"
	"time"
)

// This file contains mocks definitions needed to perform unit tests.
// Any hook left nil falls back to a zero-valued success so each test
// only wires the calls it cares about.

type MockBookStorage struct {
	AddFunc          func(ctx context.Context, book Book) error
	GetOneFunc       func(ctx context.Context, id int64) (Book, error)
	ReplaceFunc      func(ctx context.Context, id int64, book Book) (Book, error)
	DeleteFunc       func(ctx context.Context, id int64) error
	ListFunc         func(ctx context.Context, query BookQuery) (BookPage, error)
	BookshelvesFunc  func(ctx context.Context) ([]string, error)
	StatsFunc        func(ctx context.Context) (BookStats, error)
	NextIDFunc       func(ctx context.Context) (int64, error)
	ReserveIDFunc    func(ctx context.Context, id int64) error
	AveragePagesFunc func(ctx context.Context) (float64, error)
	ExportFunc       func(ctx context.Context, fn func(Book) error) error
}

// Add mocks the behavior of book creation by the repository.
func (m *MockBookStorage) Add(ctx context.Context, book Book) error {
	if m.AddFunc == nil {
		return nil
	}
	return m.AddFunc(ctx, book)
}

// GetOne mocks the behavior of retrieving a book by the repository.
func (m *MockBookStorage) GetOne(ctx context.Context, id int64) (Book, error) {
	if m.GetOneFunc == nil {
		return Book{}, nil
	}
	return m.GetOneFunc(ctx, id)
}

// Replace mocks the behavior of replacing a book by the repository.
func (m *MockBookStorage) Replace(ctx context.Context, id int64, book Book) (Book, error) {
	if m.ReplaceFunc == nil {
		return book, nil
	}
	return m.ReplaceFunc(ctx, id, book)
}

// Delete mocks the behavior of deleting a book by the repository.
func (m *MockBookStorage) Delete(ctx context.Context, id int64) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, id)
}

// List mocks the behavior of listing books by the repository.
func (m *MockBookStorage) List(ctx context.Context, query BookQuery) (BookPage, error) {
	if m.ListFunc == nil {
		return BookPage{}, nil
	}
	return m.ListFunc(ctx, query)
}

// Bookshelves mocks the retrieval of distinct custom shelves.
func (m *MockBookStorage) Bookshelves(ctx context.Context) ([]string, error) {
	if m.BookshelvesFunc == nil {
		return nil, nil
	}
	return m.BookshelvesFunc(ctx)
}

// Stats mocks the computation of the aggregated statistics.
func (m *MockBookStorage) Stats(ctx context.Context) (BookStats, error) {
	if m.StatsFunc == nil {
		return BookStats{}, nil
	}
	return m.StatsFunc(ctx)
}

// NextID mocks the allocation of a new record id.
func (m *MockBookStorage) NextID(ctx context.Context) (int64, error) {
	if m.NextIDFunc == nil {
		return 1, nil
	}
	return m.NextIDFunc(ctx)
}

// ReserveID mocks the reservation of a client-supplied id.
func (m *MockBookStorage) ReserveID(ctx context.Context, id int64) error {
	if m.ReserveIDFunc == nil {
		return nil
	}
	return m.ReserveIDFunc(ctx, id)
}

// AveragePages mocks the computation of the collection average pages.
func (m *MockBookStorage) AveragePages(ctx context.Context) (float64, error) {
	if m.AveragePagesFunc == nil {
		return 0, nil
	}
	return m.AveragePagesFunc(ctx)
}

// Export mocks the full collection walk.
func (m *MockBookStorage) Export(ctx context.Context, fn func(Book) error) error {
	if m.ExportFunc == nil {
		return nil
	}
	return m.ExportFunc(ctx, fn)
}

// MockBookService implements a fake BookServiceProvider for handlers tests.
type MockBookService struct {
	CreateFunc      func(ctx context.Context, book Book) (Book, error)
	GetOneFunc      func(ctx context.Context, id int64) (Book, error)
	UpdateFunc      func(ctx context.Context, id int64, book Book) (Book, error)
	DeleteFunc      func(ctx context.Context, id int64) error
	ListFunc        func(ctx context.Context, query BookQuery) (BookPage, error)
	BookshelvesFunc func(ctx context.Context) ([]string, error)
	StatsFunc       func(ctx context.Context) (BookStats, error)
	ImportFunc      func(ctx context.Context, books []Book) ImportReport
	ExportFunc      func(ctx context.Context, fn func(Book) error) error
}

func (m *MockBookService) Create(ctx context.Context, book Book) (Book, error) {
	if m.CreateFunc == nil {
		return book, nil
	}
	return m.CreateFunc(ctx, book)
}

func (m *MockBookService) GetOne(ctx context.Context, id int64) (Book, error) {
	if m.GetOneFunc == nil {
		return Book{}, nil
	}
	return m.GetOneFunc(ctx, id)
}

func (m *MockBookService) Update(ctx context.Context, id int64, book Book) (Book, error) {
	if m.UpdateFunc == nil {
		return book, nil
	}
	return m.UpdateFunc(ctx, id, book)
}

func (m *MockBookService) Delete(ctx context.Context, id int64) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, id)
}

func (m *MockBookService) List(ctx context.Context, query BookQuery) (BookPage, error) {
	if m.ListFunc == nil {
		return BookPage{}, nil
	}
	return m.ListFunc(ctx, query)
}

func (m *MockBookService) Bookshelves(ctx context.Context) ([]string, error) {
	if m.BookshelvesFunc == nil {
		return nil, nil
	}
	return m.BookshelvesFunc(ctx)
}

func (m *MockBookService) Stats(ctx context.Context) (BookStats, error) {
	if m.StatsFunc == nil {
		return BookStats{}, nil
	}
	return m.StatsFunc(ctx)
}

func (m *MockBookService) Import(ctx context.Context, books []Book) ImportReport {
	if m.ImportFunc == nil {
		return ImportReport{}
	}
	return m.ImportFunc(ctx, books)
}

func (m *MockBookService) Export(ctx context.Context, fn func(Book) error) error {
	if m.ExportFunc == nil {
		return nil
	}
	return m.ExportFunc(ctx, fn)
}

// MockQueuer records pushed events in memory.
type MockQueuer struct {
	Pushed  map[string][]Book
	PushErr error
}

func NewMockQueuer() *MockQueuer {
	return &MockQueuer{Pushed: make(map[string][]Book)}
}

func (m *MockQueuer) Push(_ context.Context, qid string, book Book) error {
	if m.PushErr != nil {
		return m.PushErr
	}
	m.Pushed[qid] = append(m.Pushed[qid], book)
	return nil
}

func (m *MockQueuer) Pop(ctx context.Context, _ ...string) (string, Book, error) {
	<-ctx.Done()
	return "", Book{}, ctx.Err()
}

// MockCacher records sets and invalidations and serves seeded entries.
type MockCacher struct {
	Entries       map[string][]byte
	Sets          int
	Invalidations int
}

func NewMockCacher() *MockCacher {
	return &MockCacher{Entries: make(map[string][]byte)}
}

func (m *MockCacher) Get(_ context.Context, key string) ([]byte, bool) {
	value, ok := m.Entries[key]
	return value, ok
}

func (m *MockCacher) Set(_ context.Context, key string, value []byte) {
	m.Entries[key] = value
	m.Sets++
}

func (m *MockCacher) Invalidate(_ context.Context) {
	m.Invalidations++
	m.Entries = make(map[string][]byte)
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock. This
// equals to `Sun, 02 Jul 2023 00:00:00 UTC` in time.RFC1123 format.
// equals to `2023-07-02 00:00:00 +0000 UTC` in String format.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// Zero returns zero time.
func (mck *MockClocker) Zero() time.Time {
	return time.Time{}
}

// MockUIDHandler implements a fake UIDHandler.
type MockUIDHandler struct {
	MockedUID string
	Valid     bool
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string, valid bool) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id, Valid: valid}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}

// IsValid mocks IsValid behavior by providing configured status.
func (muid *MockUIDHandler) IsValid(_, _ string) bool {
	return muid.Valid
}
