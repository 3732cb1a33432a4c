package entityapi

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store with the same semantics as the hosted
// API. It backs tests and local development.
type MemStore struct {
	mu   sync.Mutex
	data map[string]map[string]Document
}

func NewMemStore() *MemStore {
	return &MemStore{data: map[string]map[string]Document{}}
}

func cloneDoc(doc Document) Document {
	out := Document{}
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// matches does exact-match comparison through a JSON round trip so that
// typed values (time.Time, numbers) compare against stored values the same
// way the remote stores would.
func matches(doc Document, query Filter) bool {
	for k, want := range query {
		got, ok := doc[k]
		if !ok {
			return false
		}
		wantRaw, err1 := json.Marshal(want)
		gotRaw, err2 := json.Marshal(got)
		if err1 != nil || err2 != nil || string(wantRaw) != string(gotRaw) {
			return false
		}
	}
	return true
}

func sortDocs(docs []Document, spec string) {
	if spec == "" {
		return
	}
	field := spec
	desc := false
	if strings.HasPrefix(spec, "-") {
		field = spec[1:]
		desc = true
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := json.Marshal(docs[i][field])
		b, _ := json.Marshal(docs[j][field])
		if desc {
			return string(a) > string(b)
		}
		return string(a) < string(b)
	})
}

func (s *MemStore) List(ctx context.Context, entity, sortSpec string) ([]Document, error) {
	return s.Filter(ctx, entity, nil, sortSpec, 0)
}

func (s *MemStore) Filter(ctx context.Context, entity string, query Filter, sortSpec string, limit int) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs []Document
	for _, doc := range s.data[entity] {
		if matches(doc, query) {
			docs = append(docs, cloneDoc(doc))
		}
	}
	sortDocs(docs, sortSpec)
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (s *MemStore) Get(ctx context.Context, entity, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.data[entity][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (s *MemStore) Create(ctx context.Context, entity string, fields Document) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := cloneDoc(fields)
	doc["id"] = uuid.NewString()
	doc["created_date"] = time.Now().UTC().Format(time.RFC3339Nano)
	if s.data[entity] == nil {
		s.data[entity] = map[string]Document{}
	}
	s.data[entity][doc["id"].(string)] = doc
	return cloneDoc(doc), nil
}

func (s *MemStore) Update(ctx context.Context, entity, id string, fields Document) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.data[entity][id]
	if !ok {
		return nil, ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	return cloneDoc(doc), nil
}

func (s *MemStore) UpdateWhere(ctx context.Context, entity, id string, guard Filter, fields Document) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.data[entity][id]
	if !ok {
		return nil, ErrNotFound
	}
	if !matches(doc, guard) {
		return nil, ErrConflict
	}
	for k, v := range fields {
		doc[k] = v
	}
	return cloneDoc(doc), nil
}

func (s *MemStore) Delete(ctx context.Context, entity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[entity][id]; !ok {
		return ErrNotFound
	}
	delete(s.data[entity], id)
	return nil
}
