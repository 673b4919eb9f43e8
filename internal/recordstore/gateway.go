// Package recordstore is the gateway to the external record store that holds
// photo, gallery, and order records. Callers address records by collection
// name and record id; the store assigns ids and creation timestamps.
//
// Two implementations share the Gateway contract: RESTClient talks to a hosted
// Backend-as-a-Service over its REST API, and DynamoGateway maps the same
// operations onto a single DynamoDB table.
package recordstore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Well-known record fields populated by every gateway on read.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
)

// Gateway defines generic CRUD and batch access to the record store.
//
// All methods return a *RequestError when the store rejects the request.
// Empty response bodies are treated as success with no payload.
type Gateway interface {
	// Query returns the records of a collection matching every equality
	// constraint in q.Where, ordered by q.Order when set.
	Query(ctx context.Context, collection string, q Query) ([]Record, error)

	// Create stores a new record and returns it with id and createdAt set.
	Create(ctx context.Context, collection string, body map[string]any) (Record, error)

	// Update merges body into an existing record.
	Update(ctx context.Context, collection, id string, body map[string]any) error

	// Delete removes a record by id.
	Delete(ctx context.Context, collection, id string) error

	// Batch applies requests in order. Implementations chunk requests to
	// respect the store's per-call limit and issue chunks sequentially; a
	// failure stops before the next chunk, leaving earlier chunks applied.
	Batch(ctx context.Context, requests []BatchRequest) error
}

// Query describes a filtered read of one collection.
type Query struct {
	// Where holds equality constraints, field name to value.
	Where map[string]any
	// Order is a field name, optionally prefixed with "-" for descending.
	Order string
	// Limit caps the number of records returned. Zero means no cap.
	Limit int
}

// BatchRequest is one operation in a batch call.
type BatchRequest struct {
	Method string         `json:"method"`
	Path   string         `json:"path"`
	Body   map[string]any `json:"body,omitempty"`
}

// BatchSize is the number of requests sent per batch call to the REST store.
const BatchSize = 50

// UpdateRequest builds a batch request that merges body into a record.
func UpdateRequest(collection, id string, body map[string]any) BatchRequest {
	return BatchRequest{Method: "PUT", Path: ObjectPath(collection, id), Body: body}
}

// DeleteRequest builds a batch request that removes a record.
func DeleteRequest(collection, id string) BatchRequest {
	return BatchRequest{Method: "DELETE", Path: ObjectPath(collection, id)}
}

// ObjectPath returns the store path of a record, e.g. "/classes/photos/abc".
func ObjectPath(collection, id string) string {
	return "/classes/" + collection + "/" + id
}

// parseObjectPath splits a store path back into collection and id.
// The id is empty for collection paths ("/classes/photos").
func parseObjectPath(path string) (collection, id string, err error) {
	idx := strings.Index(path, "/classes/")
	if idx < 0 {
		return "", "", fmt.Errorf("invalid object path %q", path)
	}
	parts := strings.Split(strings.Trim(path[idx+len("/classes/"):], "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return parts[0], "", nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("invalid object path %q", path)
}

// Chunk splits requests into consecutive slices of at most size elements.
func Chunk(requests []BatchRequest, size int) [][]BatchRequest {
	var chunks [][]BatchRequest
	for i := 0; i < len(requests); i += size {
		end := i + size
		if end > len(requests) {
			end = len(requests)
		}
		chunks = append(chunks, requests[i:end])
	}
	return chunks
}

// RequestError is returned when the record store answers with a non-success
// status. Status carries the HTTP status (or its closest equivalent for
// non-HTTP stores).
type RequestError struct {
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("store request failed (%d): %s", e.Status, e.Message)
	}
	return "store request failed: " + e.Message
}

func (e *RequestError) Unwrap() error { return e.Err }

// NotFound reports whether the store rejected the request because the record
// does not exist.
func (e *RequestError) NotFound() bool { return e.Status == 404 }

// Record is a decoded store record. Numbers decode as float64.
type Record map[string]any

// ID returns the record id.
func (r Record) ID() string { return r.String(FieldID) }

// String returns a string field, or "" when absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Number returns a numeric field. ok is false when the field is absent or not
// numeric; non-finite values are returned as-is for the caller to judge.
func (r Record) Number(key string) (float64, bool) {
	return toFloat(r[key])
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Time returns a timestamp field stored either as an RFC 3339 string or as a
// {"__type": "Date", "iso": "..."} object.
func (r Record) Time(key string) (time.Time, bool) {
	var raw string
	switch v := r[key].(type) {
	case string:
		raw = v
	case map[string]any:
		raw, _ = v["iso"].(string)
	}
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
