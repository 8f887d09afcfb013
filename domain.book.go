package main

import (
	"context"
	"time"
)

// Allowed values for the primary shelf status of a book.
const (
	ShelfRead             = "read"
	ShelfCurrentlyReading = "currently-reading"
	ShelfToRead           = "to-read"
)

// Shelves lists the three-way reading-status enumeration.
var Shelves = []string{ShelfRead, ShelfCurrentlyReading, ShelfToRead}

// Book represents a tracked book record.
type Book struct {
	ID                int64      `json:"id" bson:"_id"`
	Title             string     `json:"title" bson:"title"`
	Author            string     `json:"author" bson:"author"`
	AdditionalAuthors []string   `json:"additionalAuthors,omitempty" bson:"additionalAuthors,omitempty"`
	ISBN              string     `json:"isbn,omitempty" bson:"isbn,omitempty"`
	ISBN13            string     `json:"isbn13,omitempty" bson:"isbn13,omitempty"`
	Rating            float64    `json:"rating" bson:"rating"`
	Pages             int        `json:"pages" bson:"pages"`
	BEq               float64    `json:"beq" bson:"beq"`
	YearPublished     int        `json:"yearPublished,omitempty" bson:"yearPublished,omitempty"`
	OriginalYear      int        `json:"originalYear,omitempty" bson:"originalYear,omitempty"`
	DateRead          *time.Time `json:"dateRead,omitempty" bson:"dateRead,omitempty"`
	DateAdded         time.Time  `json:"dateAdded" bson:"dateAdded"`
	Bookshelves       []string   `json:"bookshelves,omitempty" bson:"bookshelves,omitempty"`
	Shelf             string     `json:"shelf" bson:"shelf"`
	Review            string     `json:"review,omitempty" bson:"review,omitempty"`
	Notes             string     `json:"notes,omitempty" bson:"notes,omitempty"`
	ReadCount         int        `json:"readCount" bson:"readCount"`
	OwnedCopies       int        `json:"ownedCopies" bson:"ownedCopies"`
}

// BookPage is one page of list results with its pagination metadata.
type BookPage struct {
	Data        []Book `json:"data"`
	TotalPages  int64  `json:"totalPages"`
	CurrentPage int64  `json:"currentPage"`
	TotalItems  int64  `json:"totalItems"`
}

// AuthorCount is one entry of the top authors grouping.
type AuthorCount struct {
	Author string `json:"author" bson:"_id"`
	Count  int64  `json:"count" bson:"count"`
}

// BookStats is the reporting view computed from the whole collection.
type BookStats struct {
	TotalBooks       int64         `json:"totalBooks"`
	Read             int64         `json:"read"`
	CurrentlyReading int64         `json:"currentlyReading"`
	ToRead           int64         `json:"toRead"`
	PagesRead        int64         `json:"pagesRead"`
	AverageRating    float64       `json:"averageRating"`
	TopAuthors       []AuthorCount `json:"topAuthors"`
}

// BookStorage defines possible operations on the primary book store.
type BookStorage interface {
	Add(ctx context.Context, book Book) error
	GetOne(ctx context.Context, id int64) (Book, error)
	Replace(ctx context.Context, id int64, book Book) (Book, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, query BookQuery) (BookPage, error)
	Bookshelves(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (BookStats, error)
	NextID(ctx context.Context) (int64, error)
	ReserveID(ctx context.Context, id int64) error
	AveragePages(ctx context.Context) (float64, error)
	Export(ctx context.Context, fn func(Book) error) error
}

// MirrorStorage is the surface needed by the local backup mirror.
type MirrorStorage interface {
	Put(ctx context.Context, book Book) error
	GetOne(ctx context.Context, id int64) (Book, error)
	Delete(ctx context.Context, id int64) error
}

// ValidateBook records field-level errors for a create or update payload.
// Creation requires a strictly positive page count, replacement tolerates
// zero to keep legacy records editable.
func ValidateBook(v *Validator, book *Book, creating bool) {
	v.Check(len(book.Title) != 0, "title", "must be provided")
	v.Check(len(book.Author) != 0, "author", "must be provided")
	v.Check(book.Rating >= 0 && book.Rating <= 5, "rating", "must be between 0 and 5")
	if creating {
		v.Check(book.Pages > 0, "pages", "must be greater than zero")
	} else {
		v.Check(book.Pages >= 0, "pages", "must not be negative")
	}
	v.Check(In(book.Shelf, Shelves...), "shelf", "must be one of read, currently-reading or to-read")
	v.Check(book.ReadCount >= 0, "readCount", "must not be negative")
	v.Check(book.OwnedCopies >= 0, "ownedCopies", "must not be negative")
	v.Check(Unique(book.Bookshelves), "bookshelves", "must not contain duplicate tags")
}
