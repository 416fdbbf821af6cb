// Package metadata finds a book's ISBN in its front pages and resolves it
// against public bibliographic catalogs.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// MaxISBNPages bounds the ISBN scan to the first pages of the book.
const MaxISBNPages = 15

// Metadata is the bibliographic record written to {doc}_metadata.json.
// Unknown fields are null.
type Metadata struct {
	ISBN          *string  `json:"isbn"`
	Title         *string  `json:"title"`
	Authors       []string `json:"authors"`
	Edition       *string  `json:"edition"`
	Publisher     *string  `json:"publisher"`
	PublishedDate *string  `json:"publishedDate,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Source        string   `json:"source,omitempty"`
}

// Empty returns the all-null record, carrying isbn when one was found.
func Empty(isbn string) Metadata {
	m := Metadata{Authors: []string{}}
	if isbn != "" {
		m.ISBN = &isbn
	}
	return m
}

// Resolved reports whether a provider filled the record.
func (m Metadata) Resolved() bool {
	return m.Source != ""
}

var isbnRe = regexp.MustCompile(`ISBN(?:-1[03])?:?\s*((?:97[89][- ]?)?(?:\d[- ]?){9}[\dXx])`)

// FindISBN returns the first ISBN on pages before MaxISBNPages, with spaces
// and hyphens removed. Run it before front-matter filtering.
func FindISBN(blocks []doctree.ContentBlock) string {
	for _, b := range blocks {
		if b.PageIdx >= MaxISBNPages || b.Text == "" {
			continue
		}
		if m := isbnRe.FindStringSubmatch(b.Text); m != nil {
			return strings.NewReplacer(" ", "", "-", "").Replace(m[1])
		}
	}
	return ""
}

// Provider resolves an ISBN. A nil record with a nil error means the
// catalog does not know the book.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, isbn string) (*Metadata, error)
}

// RetryableError indicates a transient catalog failure that can be retried.
type RetryableError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: retryable error (status %d): %s", e.Provider, e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Client queries providers in order until one knows the ISBN.
type Client struct {
	Providers []Provider
}

// NewClient returns a client over Google Books then Open Library, each
// request bounded by timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	return &Client{Providers: []Provider{
		&GoogleBooks{HTTPClient: hc},
		&OpenLibrary{HTTPClient: hc},
	}}
}

// Fetch returns the first provider hit. When no provider resolves the ISBN
// the provider errors are joined; errors.As finds any RetryableError.
func (c *Client) Fetch(ctx context.Context, isbn string) (*Metadata, error) {
	var errs []error
	for _, p := range c.Providers {
		md, err := p.Fetch(ctx, isbn)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if md != nil {
			md.Source = p.Name()
			if md.ISBN == nil {
				md.ISBN = &isbn
			}
			if md.Authors == nil {
				md.Authors = []string{}
			}
			return md, nil
		}
	}
	return nil, errors.Join(errs...)
}

// Lookup resolves isbn and never fails: any error ends in Empty(isbn).
func (c *Client) Lookup(ctx context.Context, isbn string) (Metadata, error) {
	if isbn == "" {
		return Empty(""), nil
	}
	md, err := c.Fetch(ctx, isbn)
	if md == nil {
		return Empty(isbn), err
	}
	return *md, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (c *Client) Close() {
	for _, p := range c.Providers {
		if cl, ok := p.(interface{ Close() }); ok {
			cl.Close()
		}
	}
}
