// Package query builds content API search URLs.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

const (
	DefaultFromDate = "2018-01-01"
	DefaultOrderBy  = "newest"
)

// OrderByValues lists the orders the search endpoint accepts.
var OrderByValues = []string{"newest", "oldest", "relevance"}

var ErrInvalidOrder = errors.New("invalid order-by")

// Params carries the per-request values; Subject and OrderBy come from the
// user, the rest from configuration.
type Params struct {
	Subject  string
	FromDate string
	APIKey   string
	PageSize int
	OrderBy  string
}

// ValidOrder reports whether order is one of OrderByValues.
func ValidOrder(order string) bool {
	for _, v := range OrderByValues {
		if v == order {
			return true
		}
	}
	return false
}

// Build appends the search parameters to base. Blank FromDate and OrderBy
// fall back to their defaults.
func Build(base string, p Params) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	order := p.OrderBy
	if order == "" {
		order = DefaultOrderBy
	}
	if !ValidOrder(order) {
		return "", fmt.Errorf("%w: %q", ErrInvalidOrder, order)
	}
	from := p.FromDate
	if from == "" {
		from = DefaultFromDate
	}

	q := u.Query()
	q.Set("q", p.Subject)
	q.Set("from-date", from)
	q.Set("api-key", p.APIKey)
	if p.PageSize > 0 {
		q.Set("page-size", strconv.Itoa(p.PageSize))
	}
	q.Set("show-references", "author")
	q.Set("order-by", order)
	q.Set("show-tags", "keyword")
	u.RawQuery = q.Encode()

	return u.String(), nil
}
