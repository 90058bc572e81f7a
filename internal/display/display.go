// Package display derives the list-row presentation of a NewsItem.
package display

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"news_search/internal/models"
)

const titleSeparator = " | "

// Empty-state messages shown instead of the list.
const (
	NoConnectionMessage = "No internet connection."
	NoNewsMessage       = "No news found."
)

// Item is one rendered row. DisplayAuthor comes from the headline split and
// is independent of the tag-derived Author.
type Item struct {
	SectionName   string  `json:"section_name"`
	PublishedAt   string  `json:"published_at"`
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	Title         string  `json:"title"`
	DisplayTitle  string  `json:"display_title"`
	DisplayAuthor *string `json:"display_author,omitempty"`
	Author        *string `json:"author,omitempty"`
	URL           string  `json:"url"`
}

// SplitTitle cuts a headline on the first " | ". Without the separator the
// title is returned unchanged and the author is nil.
func SplitTitle(title string) (string, *string) {
	head, tail, found := strings.Cut(title, titleSeparator)
	if !found {
		return title, nil
	}
	author := strings.TrimSpace(tail)
	return strings.TrimSpace(head), &author
}

// SplitPublished splits "2020-01-01T10:00:00Z" into "2020-01-01" and "10:00".
// Timestamps without a 'T' produce two empty strings.
func SplitPublished(ts string) (date, clock string) {
	date, clock, found := strings.Cut(ts, "T")
	if !found {
		return "", ""
	}
	if strings.HasSuffix(clock, "Z") {
		clock = strings.TrimSuffix(clock, "Z")
		// drop the seconds
		if i := strings.LastIndexByte(clock, ':'); i > 0 && strings.Count(clock, ":") == 2 {
			clock = clock[:i]
		}
	}
	return date, clock
}

// FromNews derives the display row of one item.
func FromNews(n models.NewsItem) Item {
	title, author := SplitTitle(n.Title)
	date, clock := SplitPublished(n.PublishedAt)
	return Item{
		SectionName:   n.SectionName,
		PublishedAt:   n.PublishedAt,
		Date:          date,
		Time:          clock,
		Title:         n.Title,
		DisplayTitle:  title,
		DisplayAuthor: author,
		Author:        n.Author,
		URL:           n.URL,
	}
}

// FromNewsList maps items in order. The result is never nil.
func FromNewsList(items []models.NewsItem) []Item {
	out := make([]Item, 0, len(items))
	for _, n := range items {
		out = append(out, FromNews(n))
	}
	return out
}

// Render writes items as aligned text rows, one per article, in list order.
func Render(w io.Writer, items []Item) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SECTION\tDATE\tTIME\tTITLE\tAUTHOR\tURL")
	for _, it := range items {
		author := ""
		if it.DisplayAuthor != nil {
			author = *it.DisplayAuthor
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", it.SectionName, it.Date, it.Time, it.DisplayTitle, author, it.URL)
	}
	return tw.Flush()
}
