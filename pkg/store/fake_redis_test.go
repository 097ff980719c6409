package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
)

// fakeJSONClient mimics the RedisJSON and hash commands CacheStore issues.
type fakeJSONClient struct {
	mu     sync.Mutex
	docs   map[string]map[string]json.RawMessage
	hashes map[string]map[string]string

	setCalls   int
	nxSkipped  int
	failHSet   error
	failJSON   error
	failPing   error
	lastGetLen int
}

func newFakeJSONClient() *fakeJSONClient {
	return &fakeJSONClient{
		docs:   make(map[string]map[string]json.RawMessage),
		hashes: make(map[string]map[string]string),
	}
}

func (f *fakeJSONClient) JSONSet(ctx context.Context, key, path, value string, onlyIfAbsent bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failJSON != nil {
		return false, f.failJSON
	}
	f.setCalls++
	doc, exists := f.docs[key]
	if path == "$" {
		if onlyIfAbsent && exists {
			f.nxSkipped++
			return false, nil
		}
		var root map[string]json.RawMessage
		if err := json.Unmarshal([]byte(value), &root); err != nil {
			return false, err
		}
		f.docs[key] = root
		return true, nil
	}
	if !exists {
		return false, errors.New("ERR new objects must be created at the root")
	}
	field := strings.TrimSuffix(strings.TrimPrefix(path, `$["`), `"]`)
	doc[field] = json.RawMessage(value)
	return true, nil
}

func (f *fakeJSONClient) JSONGet(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failJSON != nil {
		return nil, f.failJSON
	}
	doc, ok := f.docs[key]
	if !ok {
		return nil, nil
	}
	b, err := json.Marshal(doc)
	f.lastGetLen = len(b)
	return b, err
}

func (f *fakeJSONClient) HSet(ctx context.Context, key string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHSet != nil {
		return f.failHSet
	}
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (f *fakeJSONClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeJSONClient) HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for _, k := range fields {
		if v, ok := f.hashes[key][k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *fakeJSONClient) Ping(ctx context.Context) error { return f.failPing }

func (f *fakeJSONClient) Close() error { return nil }
