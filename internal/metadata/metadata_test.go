package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgallion1/docgraph/internal/doctree"
)

func TestFindISBN(t *testing.T) {
	blocks := []doctree.ContentBlock{
		{PageIdx: 0, Text: "Principles of Economics"},
		{PageIdx: 2, Text: "Copyright 2020. ISBN 978-0-13-468599-1 All rights reserved."},
		{PageIdx: 3, Text: "ISBN-10: 0-13-468599-X"},
	}
	if got := FindISBN(blocks); got != "9780134685991" {
		t.Errorf("expected 9780134685991, got %q", got)
	}

	late := []doctree.ContentBlock{{PageIdx: 15, Text: "ISBN 978-0-13-468599-1"}}
	if got := FindISBN(late); got != "" {
		t.Errorf("expected no isbn past the front pages, got %q", got)
	}
}

func TestLookup_GoogleBooks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "isbn:123" {
			t.Errorf("expected q=isbn:123, got %q", got)
		}
		w.Write([]byte(`{"items":[{"volumeInfo":{"title":"Macro","authors":["A. Smith"],"publisher":"Pub"}}]}`))
	}))
	defer srv.Close()

	c := &Client{Providers: []Provider{&GoogleBooks{BaseURL: srv.URL}}}
	md, err := c.Lookup(context.Background(), "123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !md.Resolved() || md.Source != "Google Books" {
		t.Errorf("expected Google Books source, got %q", md.Source)
	}
	if md.Title == nil || *md.Title != "Macro" || md.Edition != nil {
		t.Errorf("unexpected record %+v", md)
	}
	if md.ISBN == nil || *md.ISBN != "123" {
		t.Errorf("expected isbn carried through, got %v", md.ISBN)
	}
}

func TestLookup_FallsBackToOpenLibrary(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"totalItems":0}`))
	}))
	defer google.Close()
	openlib := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("bibkeys"); got != "ISBN:123" {
			t.Errorf("expected bibkeys ISBN:123, got %q", got)
		}
		w.Write([]byte(`{"ISBN:123":{"title":"Micro","authors":[{"name":"B. Jones"}],"publishers":[{"name":"Press"}],"notes":{"type":"/type/text","value":"Second printing"}}}`))
	}))
	defer openlib.Close()

	c := &Client{Providers: []Provider{&GoogleBooks{BaseURL: google.URL}, &OpenLibrary{BaseURL: openlib.URL}}}
	md, err := c.Lookup(context.Background(), "123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Source != "Open Library" {
		t.Errorf("expected Open Library, got %q", md.Source)
	}
	if len(md.Authors) != 1 || md.Authors[0] != "B. Jones" {
		t.Errorf("unexpected authors %v", md.Authors)
	}
	if md.Publisher == nil || *md.Publisher != "Press" {
		t.Errorf("unexpected publisher %v", md.Publisher)
	}
	if md.Description == nil || *md.Description != "Second printing" {
		t.Errorf("unexpected description %v", md.Description)
	}
}

func TestLookup_FailuresEndEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &Client{Providers: []Provider{&GoogleBooks{BaseURL: srv.URL}, &OpenLibrary{BaseURL: srv.URL}}}
	md, err := c.Lookup(context.Background(), "123")
	if md.Resolved() || md.Title != nil || md.Authors == nil {
		t.Errorf("expected empty record, got %+v", md)
	}
	if md.ISBN == nil || *md.ISBN != "123" {
		t.Errorf("expected isbn kept, got %v", md.ISBN)
	}
	var retry *RetryableError
	if !errors.As(err, &retry) || retry.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected retryable error, got %v", err)
	}

	md, err = c.Lookup(context.Background(), "")
	if err != nil || md.ISBN != nil {
		t.Errorf("expected empty lookup without isbn, got %+v %v", md, err)
	}
}
