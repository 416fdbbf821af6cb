package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// kvServer is an in-memory stand-in for the KV service.
func kvServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	store := make(map[string]any)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+apiKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		key := strings.TrimPrefix(r.URL.Path, "/kv/")
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(key, "/*"):
			prefix := strings.TrimSuffix(key, "*")
			var nodes []map[string]any
			for k, v := range store {
				if strings.HasPrefix(k, prefix) {
					nodes = append(nodes, map[string]any{"key_path": k, "value": v})
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"nodes": nodes})
		case r.Method == http.MethodPut:
			var body struct {
				Value any `json:"value"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			store[key] = body.Value
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet:
			v, ok := store[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"key_path": key, "value": v})
		case r.Method == http.MethodDelete:
			delete(store, key)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
}

func TestRemoteAdapter_RoundTrip(t *testing.T) {
	srv := kvServer(t, "secret")
	defer srv.Close()

	a, err := NewRemoteAdapter(RemoteOptions{BaseURL: srv.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	defer a.Close()
	ctx := context.Background()

	payload := []byte{0x89, 'P', 'N', 'G', 0}
	if err := a.Put(ctx, "econ/crops/img1.png", payload); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := a.Get(ctx, "econ/crops/img1.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("expected %q, got %q", payload, got)
	}

	keys, err := a.List(ctx, "econ/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 1 || keys[0] != "econ/crops/img1.png" {
		t.Errorf("unexpected keys %v", keys)
	}

	if err := a.Delete(ctx, "econ/crops/img1.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := a.Get(ctx, "econ/crops/img1.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoteAdapter_Unauthorized(t *testing.T) {
	srv := kvServer(t, "secret")
	defer srv.Close()

	a, _ := NewRemoteAdapter(RemoteOptions{BaseURL: srv.URL, APIKey: "wrong"})
	err := a.Put(context.Background(), "econ/x.json", []byte("{}"))
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Errorf("expected 401 error, got %v", err)
	}
}
