package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	googleBooksURL = "https://www.googleapis.com/books/v1/volumes"
	openLibraryURL = "https://openlibrary.org/api/books"
)

// GoogleBooks queries the Google Books volumes API.
type GoogleBooks struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (g *GoogleBooks) Name() string { return "Google Books" }

type googleResponse struct {
	Items []struct {
		VolumeInfo struct {
			Title         string   `json:"title"`
			Authors       []string `json:"authors"`
			Publisher     string   `json:"publisher"`
			PublishedDate string   `json:"publishedDate"`
			Description   string   `json:"description"`
			Edition       string   `json:"edition"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (g *GoogleBooks) Fetch(ctx context.Context, isbn string) (*Metadata, error) {
	base := g.BaseURL
	if base == "" {
		base = googleBooksURL
	}
	q := url.Values{"q": {"isbn:" + isbn}}

	var resp googleResponse
	if err := getJSON(ctx, g.client(), g.Name(), base+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	info := resp.Items[0].VolumeInfo
	return &Metadata{
		Title:         strPtr(info.Title),
		Authors:       info.Authors,
		Publisher:     strPtr(info.Publisher),
		PublishedDate: strPtr(info.PublishedDate),
		Description:   strPtr(info.Description),
		Edition:       strPtr(info.Edition),
	}, nil
}

func (g *GoogleBooks) client() *http.Client {
	if g.HTTPClient != nil {
		return g.HTTPClient
	}
	return http.DefaultClient
}

func (g *GoogleBooks) Close() { g.client().CloseIdleConnections() }

// OpenLibrary queries the Open Library books API.
type OpenLibrary struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (o *OpenLibrary) Name() string { return "Open Library" }

type openLibraryBook struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	PublishDate string          `json:"publish_date"`
	Notes       json.RawMessage `json:"notes"`
	Description json.RawMessage `json:"description"`
	EditionName string          `json:"edition_name"`
}

func (o *OpenLibrary) Fetch(ctx context.Context, isbn string) (*Metadata, error) {
	base := o.BaseURL
	if base == "" {
		base = openLibraryURL
	}
	key := "ISBN:" + isbn
	q := url.Values{"bibkeys": {key}, "jscmd": {"data"}, "format": {"json"}}

	var resp map[string]openLibraryBook
	if err := getJSON(ctx, o.client(), o.Name(), base+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	book, ok := resp[key]
	if !ok {
		return nil, nil
	}

	md := &Metadata{
		Title:         strPtr(book.Title),
		Authors:       []string{},
		PublishedDate: strPtr(book.PublishDate),
		Edition:       strPtr(book.EditionName),
	}
	for _, a := range book.Authors {
		if a.Name != "" {
			md.Authors = append(md.Authors, a.Name)
		}
	}
	if len(book.Publishers) > 0 {
		md.Publisher = strPtr(book.Publishers[0].Name)
	}
	desc := textValue(book.Notes)
	if desc == "" {
		desc = textValue(book.Description)
	}
	md.Description = strPtr(desc)
	return md, nil
}

func (o *OpenLibrary) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return http.DefaultClient
}

func (o *OpenLibrary) Close() { o.client().CloseIdleConnections() }

// textValue reads a field that is either a string or {"value": "..."}.
func textValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Value
	}
	return ""
}

func getJSON(ctx context.Context, hc *http.Client, provider, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return &RetryableError{Provider: provider, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &RetryableError{Provider: provider, StatusCode: resp.StatusCode, Message: string(body)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
