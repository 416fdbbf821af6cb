package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// RemoteOptions points at an HTTP key-value store.
type RemoteOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RemoteAdapter stores artifacts as base64 node values in a KV service
// speaking PUT/GET/DELETE /kv/{key} and GET /kv/{prefix}/*.
type RemoteAdapter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type kvNode struct {
	Key    string `json:"key_path,omitempty"`
	Value  any    `json:"value"`
	Source string `json:"source,omitempty"`
}

func NewRemoteAdapter(opts RemoteOptions) (*RemoteAdapter, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("remote storage: base URL is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteAdapter{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (r *RemoteAdapter) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	return r.httpClient.Do(req)
}

func statusError(op, key string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%s %s: status %d: %s", op, key, resp.StatusCode, string(body))
}

func (r *RemoteAdapter) Put(ctx context.Context, key string, data []byte) error {
	resp, err := r.do(ctx, http.MethodPut, "/kv/"+key, kvNode{
		Value:  base64.StdEncoding.EncodeToString(data),
		Source: "docgraph",
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError("put", key, resp)
	}
	return nil
}

func (r *RemoteAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := r.do(ctx, http.MethodGet, "/kv/"+key, nil)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("get", key, resp)
	}
	var node kvNode
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	s, ok := node.Value.(string)
	if !ok {
		return nil, fmt.Errorf("get %s: value is not an encoded artifact", key)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return data, nil
}

func (r *RemoteAdapter) Delete(ctx context.Context, key string) error {
	resp, err := r.do(ctx, http.MethodDelete, "/kv/"+key, nil)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	}
	return statusError("delete", key, resp)
}

func (r *RemoteAdapter) Exists(ctx context.Context, key string) (bool, error) {
	_, err := r.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *RemoteAdapter) List(ctx context.Context, prefix string) ([]string, error) {
	resp, err := r.do(ctx, http.MethodGet, "/kv/"+strings.TrimRight(prefix, "/")+"/*", nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list", prefix, resp)
	}
	var result struct {
		Nodes []kvNode `json:"nodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode list %s: %w", prefix, err)
	}
	keys := make([]string, 0, len(result.Nodes))
	for _, n := range result.Nodes {
		if strings.HasPrefix(n.Key, prefix) {
			keys = append(keys, n.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *RemoteAdapter) Close() error {
	r.httpClient.CloseIdleConnections()
	return nil
}
