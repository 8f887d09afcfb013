package main

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

// TestParseBookQueryDefaults ensures missing parameters fall back to defaults.
func TestParseBookQueryDefaults(t *testing.T) {
	q, v := ParseBookQuery(url.Values{})
	assert.True(t, v.Valid())
	assert.Equal(t, DefaultPage, q.Page)
	assert.Equal(t, DefaultLimit, q.Limit)
	assert.Equal(t, DefaultSort, q.Sort)
	assert.Equal(t, DefaultOrder, q.Order)
	assert.Empty(t, q.Shelf)
	assert.Empty(t, q.Search)
	assert.Nil(t, q.MinRating)
	assert.Nil(t, q.MaxRating)
	assert.Nil(t, q.StartDate)
	assert.Nil(t, q.EndDate)
}

// TestParseBookQueryValues ensures provided parameters are coerced.
func TestParseBookQueryValues(t *testing.T) {
	values := url.Values{}
	values.Set("page", "3")
	values.Set("limit", "25")
	values.Set("sort", "rating")
	values.Set("order", "asc")
	values.Set("shelf", ShelfRead)
	values.Set("search", "tolkien")
	values.Set("minRating", "3.5")
	values.Set("maxRating", "5")
	values.Set("startDate", "2023-01-01")
	values.Set("endDate", "2023-12-31")

	q, v := ParseBookQuery(values)
	assert.True(t, v.Valid())
	assert.Equal(t, int64(3), q.Page)
	assert.Equal(t, int64(25), q.Limit)
	assert.Equal(t, "rating", q.Sort)
	assert.Equal(t, "asc", q.Order)
	assert.Equal(t, ShelfRead, q.Shelf)
	assert.Equal(t, "tolkien", q.Search)
	assert.Equal(t, 3.5, *q.MinRating)
	assert.Equal(t, 5.0, *q.MaxRating)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), *q.StartDate)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), *q.EndDate)
}

// TestParseBookQueryInvalidValues ensures bad parameters are all reported.
func TestParseBookQueryInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
	}{
		{"zero page", "page", "0", "page"},
		{"non numeric page", "page", "two", "page"},
		{"zero limit", "limit", "0", "limit"},
		{"limit above max", "limit", "101", "limit"},
		{"unknown sort field", "sort", "isbn", "sort"},
		{"unknown order", "order", "up", "order"},
		{"unknown shelf", "shelf", "wishlist", "shelf"},
		{"negative rating", "minRating", "-1", "minRating"},
		{"rating above five", "maxRating", "5.1", "maxRating"},
		{"bad start date", "startDate", "01/01/2023", "startDate"},
		{"bad end date", "endDate", "yesterday", "endDate"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			values := url.Values{}
			values.Set(tc.key, tc.value)
			_, v := ParseBookQuery(values)
			assert.False(t, v.Valid())
			assert.Contains(t, v.Errors, tc.field)
		})
	}
}

// TestParseBookQueryCrossFieldChecks ensures inverted ranges are rejected.
func TestParseBookQueryCrossFieldChecks(t *testing.T) {
	values := url.Values{}
	values.Set("minRating", "4")
	values.Set("maxRating", "2")
	_, v := ParseBookQuery(values)
	assert.False(t, v.Valid())
	assert.Contains(t, v.Errors, "minRating")

	values = url.Values{}
	values.Set("startDate", "2023-06-01")
	values.Set("endDate", "2023-01-01")
	_, v = ParseBookQuery(values)
	assert.False(t, v.Valid())
	assert.Contains(t, v.Errors, "startDate")
}

// TestBookQueryFilter ensures the match document covers each active filter.
func TestBookQueryFilter(t *testing.T) {
	t.Run("empty query matches everything", func(t *testing.T) {
		q := BookQuery{}
		assert.Empty(t, q.Filter())
	})

	t.Run("shelf and search", func(t *testing.T) {
		q := BookQuery{Shelf: ShelfRead, Search: "dune"}
		filter := q.Filter()
		assert.Equal(t, ShelfRead, filter["shelf"])
		assert.Contains(t, filter, "$or")
	})

	t.Run("search special characters are quoted", func(t *testing.T) {
		q := BookQuery{Search: "c++ (vol. 1)"}
		filter := q.Filter()
		or, ok := filter["$or"].(bson.A)
		assert.True(t, ok)
		assert.Len(t, or, 2)
	})

	t.Run("rating range is inclusive", func(t *testing.T) {
		min, max := 2.0, 4.0
		q := BookQuery{MinRating: &min, MaxRating: &max}
		rating, ok := q.Filter()["rating"].(bson.M)
		assert.True(t, ok)
		assert.Equal(t, 2.0, rating["$gte"])
		assert.Equal(t, 4.0, rating["$lte"])
	})

	t.Run("date range covers the whole end day", func(t *testing.T) {
		start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
		q := BookQuery{StartDate: &start, EndDate: &end}
		read, ok := q.Filter()["dateRead"].(bson.M)
		assert.True(t, ok)
		assert.Equal(t, start, read["$gte"])
		assert.Equal(t, end.AddDate(0, 0, 1), read["$lt"])
	})
}

// TestBookQuerySortDoc ensures the record id is used as tiebreak.
func TestBookQuerySortDoc(t *testing.T) {
	q := BookQuery{Sort: "rating", Order: "desc"}
	doc := q.SortDoc()
	assert.Len(t, doc, 2)
	assert.Equal(t, "rating", doc[0].Key)
	assert.Equal(t, -1, doc[0].Value)
	assert.Equal(t, "_id", doc[1].Key)

	q = BookQuery{Sort: "id", Order: "asc"}
	doc = q.SortDoc()
	assert.Len(t, doc, 1)
	assert.Equal(t, "_id", doc[0].Key)
	assert.Equal(t, 1, doc[0].Value)
}

// TestBookQueryPaging ensures skip and page count computations.
func TestBookQueryPaging(t *testing.T) {
	q := BookQuery{Page: 3, Limit: 10}
	assert.Equal(t, int64(20), q.Skip())
	assert.Equal(t, int64(0), q.TotalPages(0))
	assert.Equal(t, int64(1), q.TotalPages(10))
	assert.Equal(t, int64(2), q.TotalPages(11))
	assert.Equal(t, int64(3), q.TotalPages(25))
}

// TestBookQueryCacheKey ensures distinct queries yield distinct fingerprints.
func TestBookQueryCacheKey(t *testing.T) {
	a := BookQuery{Page: 1, Limit: 10, Sort: DefaultSort, Order: DefaultOrder}
	b := BookQuery{Page: 2, Limit: 10, Sort: DefaultSort, Order: DefaultOrder}
	c := BookQuery{Page: 1, Limit: 10, Sort: DefaultSort, Order: DefaultOrder, Search: "dune"}
	assert.NotEqual(t, a.CacheKey(), b.CacheKey())
	assert.NotEqual(t, a.CacheKey(), c.CacheKey())
	assert.Equal(t, a.CacheKey(), BookQuery{Page: 1, Limit: 10, Sort: DefaultSort, Order: DefaultOrder}.CacheKey())
}
