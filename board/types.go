package board

import (
	"strconv"
	"strings"
)

// CatalogPage is one page of the board catalog
type CatalogPage struct {
	Page    int             `json:"page"`
	Threads []CatalogThread `json:"threads"`
}

// CatalogThread is a thread entry as returned by catalog.json
type CatalogThread struct {
	No          int64  `json:"no"`
	SemanticURL string `json:"semantic_url"`
	Subject     string `json:"sub"`
	Images      int    `json:"images"`
	Replies     int    `json:"replies"`
	Sticky      int    `json:"sticky"`
}

// ListingSummary is the presentation view of a catalog thread
type ListingSummary struct {
	Title               string
	ID                  int64
	AttachmentCountHint int
	Replies             int
	Sticky              bool
}

// ToSummary converts a catalog thread to a ListingSummary
func (t CatalogThread) ToSummary() ListingSummary {
	title := strings.TrimSpace(t.SemanticURL)
	if title == "" {
		title = strings.TrimSpace(t.Subject)
	}
	if title == "" {
		title = strconv.FormatInt(t.No, 10)
	}

	return ListingSummary{
		Title:               title,
		ID:                  t.No,
		AttachmentCountHint: t.Images,
		Replies:             t.Replies,
		Sticky:              t.Sticky != 0,
	}
}

// ThreadPayload is the decoded thread document
type ThreadPayload struct {
	Posts []PostRecord `json:"posts"`
}

// PostRecord is a single post. Attachment fields are optional.
type PostRecord struct {
	No       int64   `json:"no"`
	Ext      *string `json:"ext,omitempty"`
	Tim      *int64  `json:"tim,omitempty"`
	Filename *string `json:"filename,omitempty"`
	FileSize int64   `json:"fsize,omitempty"`
}

// AttachmentTask describes one attachment to download
type AttachmentTask struct {
	RemoteID           int64
	DeclaredFilename   string
	Extension          string
	SourceListingTitle string
	SizeHint           int64
}

// FileName returns the declared filename with its extension
func (t AttachmentTask) FileName() string {
	return t.DeclaredFilename + t.Extension
}
