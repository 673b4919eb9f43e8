package recordstore

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryGateway is an in-process Gateway used for local development and
// tests. It mirrors the REST store's semantics: store-assigned ids and
// createdAt, 404 on unknown records, batches applied in chunks of BatchSize.
type MemoryGateway struct {
	mu      sync.Mutex
	records map[string]map[string]Record
	nextID  int
	now     func() time.Time
}

// Compile-time interface check.
var _ Gateway = (*MemoryGateway)(nil)

// NewMemoryGateway creates an empty MemoryGateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		records: make(map[string]map[string]Record),
		now:     time.Now,
	}
}

// SetClock overrides the clock used for createdAt.
func (g *MemoryGateway) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// Put stores rec verbatim under its id, bypassing createdAt assignment.
// Useful for seeding drifted state.
func (g *MemoryGateway) Put(collection string, rec Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.collection(collection)[rec.ID()] = copyRecord(rec)
}

func (g *MemoryGateway) collection(name string) map[string]Record {
	c, ok := g.records[name]
	if !ok {
		c = make(map[string]Record)
		g.records[name] = c
	}
	return c
}

func (g *MemoryGateway) Query(ctx context.Context, collection string, q Query) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RequestError{Message: err.Error(), Err: err}
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []Record
	for _, rec := range g.records[collection] {
		if matches(rec, q.Where) {
			out = append(out, copyRecord(rec))
		}
	}
	// Map iteration is random; give unordered queries a stable id order.
	sortRecords(out, FieldID)
	if q.Order != "" {
		sortRecords(out, q.Order)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (g *MemoryGateway) Create(ctx context.Context, collection string, body map[string]any) (Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.create(collection, body), nil
}

func (g *MemoryGateway) create(collection string, body map[string]any) Record {
	g.nextID++
	rec := copyRecord(Record(body))
	rec[FieldID] = "r" + strconv.Itoa(g.nextID)
	rec[FieldCreatedAt] = g.now().UTC().Format(time.RFC3339Nano)
	g.collection(collection)[rec.ID()] = rec
	return copyRecord(rec)
}

func (g *MemoryGateway) Update(ctx context.Context, collection, id string, body map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.update(collection, id, body)
}

func (g *MemoryGateway) update(collection, id string, body map[string]any) error {
	rec, ok := g.records[collection][id]
	if !ok {
		return &RequestError{Status: http.StatusNotFound, Message: fmt.Sprintf("%s/%s not found", collection, id)}
	}
	for k, v := range body {
		rec[k] = v
	}
	return nil
}

func (g *MemoryGateway) Delete(ctx context.Context, collection, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.delete(collection, id)
}

func (g *MemoryGateway) delete(collection, id string) error {
	if _, ok := g.records[collection][id]; !ok {
		return &RequestError{Status: http.StatusNotFound, Message: fmt.Sprintf("%s/%s not found", collection, id)}
	}
	delete(g.records[collection], id)
	return nil
}

func (g *MemoryGateway) Batch(ctx context.Context, requests []BatchRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, chunk := range Chunk(requests, BatchSize) {
		for _, req := range chunk {
			collection, id, err := parseObjectPath(req.Path)
			if err != nil {
				return err
			}
			switch strings.ToUpper(req.Method) {
			case http.MethodPost:
				g.create(collection, req.Body)
			case http.MethodPut:
				err = g.update(collection, id, req.Body)
			case http.MethodDelete:
				err = g.delete(collection, id)
			default:
				err = fmt.Errorf("unsupported batch method %q", req.Method)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Len returns the number of records in a collection.
func (g *MemoryGateway) Len(collection string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records[collection])
}

func matches(rec Record, where map[string]any) bool {
	for field, want := range where {
		if !equalValues(rec[field], want) {
			return false
		}
	}
	return true
}

// equalValues compares scalars, treating all numeric kinds alike.
func equalValues(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && af == bf
	}
	return a == b
}

func copyRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
