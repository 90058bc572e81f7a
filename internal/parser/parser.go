// Package parser turns a content API search response into NewsItem records.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"news_search/internal/logger"
	"news_search/internal/models"
)

// ParseError reports a structurally invalid body. Index is the offending
// position in results, or -1 when the document itself is broken.
type ParseError struct {
	Index int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	switch {
	case e.Index < 0 && e.Field == "":
		return fmt.Sprintf("parse response: %v", e.Err)
	case e.Index < 0:
		return fmt.Sprintf("parse response: %s: %v", e.Field, e.Err)
	default:
		return fmt.Sprintf("parse response: results[%d].%s: %v", e.Index, e.Field, e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	errMissing = errors.New("missing required field")
	errBadURL  = errors.New("not an absolute URL")
)

type searchResponse struct {
	Response *searchBody `json:"response"`
}

type searchBody struct {
	Results []result `json:"results"`
}

type result struct {
	SectionName        *string `json:"sectionName"`
	WebPublicationDate *string `json:"webPublicationDate"`
	WebTitle           *string `json:"webTitle"`
	WebURL             *string `json:"webUrl"`
	Tags               []tag   `json:"tags"`
}

type tag struct {
	WebTitle *string `json:"webTitle"`
}

// Parse never fails: an empty or broken body yields an empty list and the
// problem is logged.
func Parse(body string) []models.NewsItem {
	items, err := ParseStrict(body)
	if err != nil {
		logger.For("parser").WithError(err).Error("Problem parsing the news JSON results")
		return []models.NewsItem{}
	}
	return items
}

// ParseStrict is Parse with the error surfaced. An empty body is not an error.
func ParseStrict(body string) ([]models.NewsItem, error) {
	if strings.TrimSpace(body) == "" {
		return []models.NewsItem{}, nil
	}

	var doc searchResponse
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, &ParseError{Index: -1, Err: err}
	}
	if doc.Response == nil {
		return nil, &ParseError{Index: -1, Field: "response", Err: errMissing}
	}
	if doc.Response.Results == nil {
		return nil, &ParseError{Index: -1, Field: "response.results", Err: errMissing}
	}

	items := make([]models.NewsItem, 0, len(doc.Response.Results))
	for i, r := range doc.Response.Results {
		item, err := convert(i, r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func convert(i int, r result) (models.NewsItem, error) {
	required := []struct {
		name  string
		value *string
	}{
		{"sectionName", r.SectionName},
		{"webPublicationDate", r.WebPublicationDate},
		{"webTitle", r.WebTitle},
		{"webUrl", r.WebURL},
	}
	for _, f := range required {
		if f.value == nil {
			return models.NewsItem{}, &ParseError{Index: i, Field: f.name, Err: errMissing}
		}
	}

	u, err := url.Parse(*r.WebURL)
	if err != nil {
		return models.NewsItem{}, &ParseError{Index: i, Field: "webUrl", Err: err}
	}
	if !u.IsAbs() || u.Host == "" {
		return models.NewsItem{}, &ParseError{Index: i, Field: "webUrl", Err: errBadURL}
	}

	return models.NewsItem{
		SectionName: *r.SectionName,
		PublishedAt: *r.WebPublicationDate,
		Title:       *r.WebTitle,
		Author:      tagAuthor(r.Tags),
		URL:         *r.WebURL,
	}, nil
}

// tagAuthor walks tags in order and keeps overwriting with every title it
// finds, so the last titled tag wins.
func tagAuthor(tags []tag) *string {
	var author *string
	for j, t := range tags {
		if t.WebTitle == nil {
			logger.For("parser").WithField("tag", j).Debug("No author's name")
			continue
		}
		name := *t.WebTitle
		author = &name
	}
	return author
}
