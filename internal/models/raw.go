// internal/models/raw.go
package models

import "time"

// Source identifies where a raw record was scraped from.
type Source string

const (
	SourceReddit           Source = "reddit"
	SourceShopifyAppStore  Source = "shopify_app_store"
	SourceTwitter          Source = "twitter"
	SourceShopifyCommunity Source = "shopify_community"
)

// MaxRawContentLength caps stored record content.
const MaxRawContentLength = 100_000

// RawRecord is one scraped merchant feedback item, keyed by SourceID within
// its Source.
type RawRecord struct {
	ID        string                 `json:"id,omitempty"`
	Source    Source                 `json:"source"`
	SourceID  string                 `json:"source_id"`
	URL       string                 `json:"url,omitempty"`
	Title     string                 `json:"title,omitempty"`
	Content   string                 `json:"content"`
	Author    string                 `json:"author,omitempty"`
	CreatedAt *time.Time             `json:"created_at,omitempty"`
	ScrapedAt time.Time              `json:"scraped_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// CappedContent returns the content truncated to the storage limit.
func (r *RawRecord) CappedContent() string {
	if len(r.Content) > MaxRawContentLength {
		return r.Content[:MaxRawContentLength]
	}
	return r.Content
}
