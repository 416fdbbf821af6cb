package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestLocalAdapter_RoundTrip(t *testing.T) {
	a, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	defer a.Close()
	ctx := context.Background()

	if err := a.Put(ctx, "econ/econ_chunks.json", []byte(`[]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := a.Put(ctx, "econ/tables/t1.md", []byte("| a |")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := a.Put(ctx, "other/x.json", []byte(`{}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := a.Get(ctx, "econ/econ_chunks.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("expected %q, got %q", "[]", data)
	}

	keys, err := a.List(ctx, "econ/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Join(keys, ",") != "econ/econ_chunks.json,econ/tables/t1.md" {
		t.Errorf("unexpected keys %v", keys)
	}

	n, err := DeletePrefix(ctx, a, "econ/")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 deletions, got %d (%v)", n, err)
	}
	ok, err := a.Exists(ctx, "econ/econ_chunks.json")
	if err != nil || ok {
		t.Errorf("expected key gone, got exists=%v err=%v", ok, err)
	}
	if _, err := a.Get(ctx, "econ/econ_chunks.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := a.Delete(ctx, "econ/missing.json"); err != nil {
		t.Errorf("expected deleting a missing key to succeed, got %v", err)
	}
}

func TestLocalAdapter_RejectsEscapingKeys(t *testing.T) {
	a, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	for _, key := range []string{"../escape.json", "/etc/passwd", "."} {
		if err := a.Put(context.Background(), key, []byte("x")); err == nil {
			t.Errorf("expected error for key %q", key)
		}
	}
}

func TestLocalAdapter_ConcurrentPuts(t *testing.T) {
	a, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := a.Put(ctx, "doc/same.json", []byte{byte('0' + i)}); err != nil {
				t.Errorf("put: %v", err)
			}
		}(i)
	}
	wg.Wait()
	data, err := a.Get(ctx, "doc/same.json")
	if err != nil || len(data) != 1 {
		t.Errorf("expected one complete write, got %q (%v)", data, err)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(Options{Backend: "tape"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
