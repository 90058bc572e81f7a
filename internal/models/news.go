package models

// NewsItem is one article entry of a search response. Items carry no identity
// beyond their position in the result list.
type NewsItem struct {
	SectionName string `json:"section_name"`
	// PublishedAt is kept exactly as the API returned it.
	PublishedAt string `json:"published_at"`
	// Title may embed an author suffix after " | ".
	Title string `json:"title"`
	// Author comes from the tags array and is nil when no tag has a title.
	Author *string `json:"author,omitempty"`
	URL    string  `json:"url"`
}

// Preferences holds the user-configurable part of a search query.
type Preferences struct {
	Subject string `json:"subject"`
	OrderBy string `json:"order_by"`
}
