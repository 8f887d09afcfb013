package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	BooksCollection    = "books"
	CountersCollection = "counters"
	BooksCounterID     = "books"
)

type mongoBookStorage struct {
	logger   *zap.Logger
	client   *mongo.Client
	books    *mongo.Collection
	counters *mongo.Collection
}

// GetMongoClient provides a ready to use mongo client.
func GetMongoClient(config *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.Mongo.ConnectTimeout)
	defer cancel()

	opts := options.Client().ApplyURI(config.Mongo.URI)
	if config.Mongo.PoolSize > 0 {
		opts.SetMaxPoolSize(config.Mongo.PoolSize)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build mongo client: %v", err)
	}

	// test connection.
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// NewMongoBookStorage provides an instance of mongo-based book storage
// with the supporting indexes in place.
func NewMongoBookStorage(ctx context.Context, logger *zap.Logger, client *mongo.Client, database string) (BookStorage, error) {
	db := client.Database(database)
	ms := &mongoBookStorage{
		logger:   logger,
		client:   client,
		books:    db.Collection(BooksCollection),
		counters: db.Collection(CountersCollection),
	}
	if err := ms.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to set up books indexes: %v", err)
	}
	return ms, nil
}

// ensureIndexes creates the four supporting indexes of the books collection.
func (ms *mongoBookStorage) ensureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "shelf", Value: 1}, {Key: "dateRead", Value: -1}}},
		{Keys: bson.D{{Key: "author", Value: 1}, {Key: "title", Value: 1}}},
		{Keys: bson.D{{Key: "dateAdded", Value: -1}}},
		{Keys: bson.D{{Key: "bookshelves", Value: 1}}, Options: options.Index().SetSparse(true)},
	}
	_, err := ms.books.Indexes().CreateMany(ctx, models)
	return err
}

// Add inserts a new book record.
func (ms *mongoBookStorage) Add(ctx context.Context, book Book) error {
	_, err := ms.books.InsertOne(ctx, book)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateBookID
	}
	return err
}

// GetOne retrieves a book record based on its ID.
func (ms *mongoBookStorage) GetOne(ctx context.Context, id int64) (Book, error) {
	var book Book
	err := ms.books.FindOne(ctx, bson.M{"_id": id}).Decode(&book)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return book, ErrBookNotFound
	}
	return book, err
}

// Replace swaps the whole stored document of an existing book and returns the new state.
func (ms *mongoBookStorage) Replace(ctx context.Context, id int64, book Book) (Book, error) {
	var replaced Book
	opts := options.FindOneAndReplace().SetReturnDocument(options.After)
	err := ms.books.FindOneAndReplace(ctx, bson.M{"_id": id}, book, opts).Decode(&replaced)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return replaced, ErrBookNotFound
	}
	return replaced, err
}

// Delete removes a book record based on its ID.
func (ms *mongoBookStorage) Delete(ctx context.Context, id int64) error {
	res, err := ms.books.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrBookNotFound
	}
	return nil
}

// List retrieves one page of book records matching the query filters,
// together with the total number of matches.
func (ms *mongoBookStorage) List(ctx context.Context, query BookQuery) (BookPage, error) {
	page := BookPage{Data: []Book{}, CurrentPage: query.Page}
	filter := query.Filter()

	total, err := ms.books.CountDocuments(ctx, filter)
	if err != nil {
		return page, err
	}
	page.TotalItems = total
	page.TotalPages = query.TotalPages(total)

	opts := options.Find().
		SetSort(query.SortDoc()).
		SetSkip(query.Skip()).
		SetLimit(query.Limit)
	cursor, err := ms.books.Find(ctx, filter, opts)
	if err != nil {
		return page, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &page.Data); err != nil {
		return page, err
	}
	return page, nil
}

// Bookshelves retrieves the sorted set of distinct free-text shelf tags.
func (ms *mongoBookStorage) Bookshelves(ctx context.Context) ([]string, error) {
	values, err := ms.books.Distinct(ctx, "bookshelves", bson.M{})
	if err != nil {
		return nil, err
	}
	shelves := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			shelves = append(shelves, s)
		}
	}
	sort.Strings(shelves)
	return shelves, nil
}

// Stats runs the reporting queries: the total and per-shelf counts, the sum
// of pages over read books, the average of non-zero ratings and the top-5
// authors grouping.
func (ms *mongoBookStorage) Stats(ctx context.Context) (BookStats, error) {
	var stats BookStats
	var err error

	if stats.TotalBooks, err = ms.books.CountDocuments(ctx, bson.M{}); err != nil {
		return stats, err
	}
	if stats.Read, err = ms.books.CountDocuments(ctx, bson.M{"shelf": ShelfRead}); err != nil {
		return stats, err
	}
	if stats.CurrentlyReading, err = ms.books.CountDocuments(ctx, bson.M{"shelf": ShelfCurrentlyReading}); err != nil {
		return stats, err
	}
	if stats.ToRead, err = ms.books.CountDocuments(ctx, bson.M{"shelf": ShelfToRead}); err != nil {
		return stats, err
	}

	pages := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"shelf": ShelfRead}}},
		bson.D{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$pages"}}}},
	}
	var pagesResult []struct {
		Total int64 `bson:"total"`
	}
	if err = ms.aggregate(ctx, pages, &pagesResult); err != nil {
		return stats, err
	}
	if len(pagesResult) != 0 {
		stats.PagesRead = pagesResult[0].Total
	}

	rating := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"rating": bson.M{"$gt": 0}}}},
		bson.D{{Key: "$group", Value: bson.M{"_id": nil, "average": bson.M{"$avg": "$rating"}}}},
	}
	var ratingResult []struct {
		Average float64 `bson:"average"`
	}
	if err = ms.aggregate(ctx, rating, &ratingResult); err != nil {
		return stats, err
	}
	if len(ratingResult) != 0 {
		stats.AverageRating = ratingResult[0].Average
	}

	authors := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.M{"_id": "$author", "count": bson.M{"$sum": 1}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		bson.D{{Key: "$limit", Value: 5}},
	}
	stats.TopAuthors = []AuthorCount{}
	if err = ms.aggregate(ctx, authors, &stats.TopAuthors); err != nil {
		return stats, err
	}

	return stats, nil
}

func (ms *mongoBookStorage) aggregate(ctx context.Context, pipeline mongo.Pipeline, results interface{}) error {
	cursor, err := ms.books.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, results)
}

// NextID atomically allocates the next numeric book identifier from the
// counters collection. The server-side $inc removes the read-then-write
// race a max-based assignment would have under concurrent creations.
func (ms *mongoBookStorage) NextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := ms.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": BooksCounterID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

// ReserveID raises the identifier counter to at least the given value so
// that client-supplied ids never collide with later allocations.
func (ms *mongoBookStorage) ReserveID(ctx context.Context, id int64) error {
	opts := options.Update().SetUpsert(true)
	_, err := ms.counters.UpdateOne(ctx,
		bson.M{"_id": BooksCounterID},
		bson.M{"$max": bson.M{"seq": id}},
		opts,
	)
	return err
}

// AveragePages computes the mean page count over the whole collection.
// It returns 0 when the collection is empty.
func (ms *mongoBookStorage) AveragePages(ctx context.Context) (float64, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.M{"_id": nil, "average": bson.M{"$avg": "$pages"}}}},
	}
	var result []struct {
		Average float64 `bson:"average"`
	}
	if err := ms.aggregate(ctx, pipeline, &result); err != nil {
		return 0, err
	}
	if len(result) == 0 {
		return 0, nil
	}
	return result[0].Average, nil
}

// Export walks the whole collection in id order and hands every record
// to the given callback, streaming from the cursor batch by batch.
func (ms *mongoBookStorage) Export(ctx context.Context, fn func(Book) error) error {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := ms.books.Find(ctx, bson.M{}, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var book Book
		if err = cursor.Decode(&book); err != nil {
			return err
		}
		if err = fn(book); err != nil {
			return err
		}
	}
	return cursor.Err()
}
