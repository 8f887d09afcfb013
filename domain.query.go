package main

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Defaults and bounds applied to the list endpoint parameters.
const (
	DefaultPage  int64 = 1
	DefaultLimit int64 = 10
	MaxLimit     int64 = 100
	DefaultSort        = "dateAdded"
	DefaultOrder       = "desc"
	DateLayout         = "2006-01-02"
)

// sortFields whitelists client sort keys and maps them to stored fields.
var sortFields = map[string]string{
	"id":        "_id",
	"title":     "title",
	"author":    "author",
	"rating":    "rating",
	"pages":     "pages",
	"dateRead":  "dateRead",
	"dateAdded": "dateAdded",
}

// BookQuery carries the validated parameters of a list request.
type BookQuery struct {
	Page      int64
	Limit     int64
	Sort      string
	Order     string
	Shelf     string
	Search    string
	MinRating *float64
	MaxRating *float64
	StartDate *time.Time
	EndDate   *time.Time
}

// ParseBookQuery coerces the raw query parameters of the list endpoint into
// a BookQuery, applying defaults and collecting field errors along the way.
func ParseBookQuery(values url.Values) (BookQuery, *Validator) {
	v := NewValidator()
	q := BookQuery{Page: DefaultPage, Limit: DefaultLimit, Sort: DefaultSort, Order: DefaultOrder}

	if raw := values.Get("page"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			v.AddError("page", "must be a positive integer")
		} else {
			q.Page = n
		}
	}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > MaxLimit {
			v.AddError("limit", fmt.Sprintf("must be an integer between 1 and %d", MaxLimit))
		} else {
			q.Limit = n
		}
	}

	if raw := values.Get("sort"); raw != "" {
		if _, ok := sortFields[raw]; !ok {
			v.AddError("sort", "must be one of id, title, author, rating, pages, dateRead or dateAdded")
		} else {
			q.Sort = raw
		}
	}

	if raw := values.Get("order"); raw != "" {
		if !In(raw, "asc", "desc") {
			v.AddError("order", "must be asc or desc")
		} else {
			q.Order = raw
		}
	}

	if raw := values.Get("shelf"); raw != "" {
		if !In(raw, Shelves...) {
			v.AddError("shelf", "must be one of read, currently-reading or to-read")
		} else {
			q.Shelf = raw
		}
	}

	q.Search = values.Get("search")

	if raw := values.Get("minRating"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || f > 5 {
			v.AddError("minRating", "must be a number between 0 and 5")
		} else {
			q.MinRating = &f
		}
	}

	if raw := values.Get("maxRating"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || f > 5 {
			v.AddError("maxRating", "must be a number between 0 and 5")
		} else {
			q.MaxRating = &f
		}
	}

	if q.MinRating != nil && q.MaxRating != nil && *q.MinRating > *q.MaxRating {
		v.AddError("minRating", "must not be greater than maxRating")
	}

	if raw := values.Get("startDate"); raw != "" {
		t, err := time.Parse(DateLayout, raw)
		if err != nil {
			v.AddError("startDate", "must be a date formatted as YYYY-MM-DD")
		} else {
			q.StartDate = &t
		}
	}

	if raw := values.Get("endDate"); raw != "" {
		t, err := time.Parse(DateLayout, raw)
		if err != nil {
			v.AddError("endDate", "must be a date formatted as YYYY-MM-DD")
		} else {
			q.EndDate = &t
		}
	}

	if q.StartDate != nil && q.EndDate != nil && q.StartDate.After(*q.EndDate) {
		v.AddError("startDate", "must not be after endDate")
	}

	return q, v
}

// Filter builds the native match document from the validated query. The
// search string becomes a case-insensitive substring match on title and
// author, rating and date ranges are inclusive at both bounds.
func (q BookQuery) Filter() bson.M {
	filter := bson.M{}

	if q.Shelf != "" {
		filter["shelf"] = q.Shelf
	}

	if q.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{bson.M{"title": rx}, bson.M{"author": rx}}
	}

	rating := bson.M{}
	if q.MinRating != nil {
		rating["$gte"] = *q.MinRating
	}
	if q.MaxRating != nil {
		rating["$lte"] = *q.MaxRating
	}
	if len(rating) != 0 {
		filter["rating"] = rating
	}

	read := bson.M{}
	if q.StartDate != nil {
		read["$gte"] = *q.StartDate
	}
	if q.EndDate != nil {
		// the whole end day is part of the range.
		read["$lt"] = q.EndDate.AddDate(0, 0, 1)
	}
	if len(read) != 0 {
		filter["dateRead"] = read
	}

	return filter
}

// SortDoc builds the sort document with the record id as tiebreak so
// that paginated results keep a stable total order.
func (q BookQuery) SortDoc() bson.D {
	dir := -1
	if q.Order == "asc" {
		dir = 1
	}
	field := sortFields[q.Sort]
	if field == "_id" {
		return bson.D{{Key: "_id", Value: dir}}
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}
}

// Skip returns the number of records preceding the requested page.
func (q BookQuery) Skip() int64 {
	return (q.Page - 1) * q.Limit
}

// TotalPages computes the page count for a given total of matches.
func (q BookQuery) TotalPages(total int64) int64 {
	if total == 0 {
		return 0
	}
	return (total + q.Limit - 1) / q.Limit
}

// CacheKey fingerprints the query for the response cache.
func (q BookQuery) CacheKey() string {
	min, max := "", ""
	if q.MinRating != nil {
		min = strconv.FormatFloat(*q.MinRating, 'f', -1, 64)
	}
	if q.MaxRating != nil {
		max = strconv.FormatFloat(*q.MaxRating, 'f', -1, 64)
	}
	start, end := "", ""
	if q.StartDate != nil {
		start = q.StartDate.Format(DateLayout)
	}
	if q.EndDate != nil {
		end = q.EndDate.Format(DateLayout)
	}
	return fmt.Sprintf("p=%d&l=%d&s=%s&o=%s&sh=%s&q=%s&minr=%s&maxr=%s&sd=%s&ed=%s",
		q.Page, q.Limit, q.Sort, q.Order, q.Shelf, url.QueryEscape(q.Search), min, max, start, end)
}
