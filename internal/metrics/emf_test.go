package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var docs []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, line)
		}
		docs = append(docs, doc)
	}
	return docs
}

func TestNewEmitter_FunctionNameDimension(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "portfolio-api")

	r := NewEmitter(Namespace, &bytes.Buffer{}).New()
	if r.dimensions["FunctionName"] != "portfolio-api" {
		t.Errorf("expected FunctionName dimension, got %q", r.dimensions["FunctionName"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	var buf bytes.Buffer
	e := NewEmitter(Namespace, &buf)

	e.New().
		Dimension("Endpoint", "/api/photos").
		Metric("RequestLatencyMs", 12.5, UnitMilliseconds).
		Count("RequestCount").
		Property("method", "GET").
		Flush()

	docs := decodeLines(t, &buf)
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	doc := docs[0]

	awsMap, ok := doc["_aws"].(map[string]any)
	if !ok {
		t.Fatal("missing _aws directive in EMF output")
	}
	if _, ok := awsMap["Timestamp"]; !ok {
		t.Error("missing Timestamp in _aws directive")
	}
	cwArr, ok := awsMap["CloudWatchMetrics"].([]any)
	if !ok || len(cwArr) == 0 {
		t.Fatal("CloudWatchMetrics should be a non-empty array")
	}
	if ns := cwArr[0].(map[string]any)["Namespace"]; ns != Namespace {
		t.Errorf("expected namespace %s, got %v", Namespace, ns)
	}

	if doc["Endpoint"] != "/api/photos" {
		t.Errorf("expected Endpoint dimension, got %v", doc["Endpoint"])
	}
	if doc["RequestLatencyMs"] != 12.5 {
		t.Errorf("expected RequestLatencyMs=12.5, got %v", doc["RequestLatencyMs"])
	}
	if doc["RequestCount"] != float64(1) {
		t.Errorf("expected RequestCount=1, got %v", doc["RequestCount"])
	}
	if doc["method"] != "GET" {
		t.Errorf("expected method property, got %v", doc["method"])
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewEmitter(Namespace, &buf).New().Dimension("Op", "noop").Flush()
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty recorder, got: %s", buf.String())
	}
}

func TestEmitter_Request(t *testing.T) {
	var buf bytes.Buffer
	NewEmitter(Namespace, &buf).Request("/api/photos/order", "PUT", 200, 42*time.Millisecond)

	doc := decodeLines(t, &buf)[0]
	if doc["RequestLatencyMs"] != float64(42) || doc["statusCode"] != float64(200) {
		t.Errorf("unexpected document: %v", doc)
	}
}

func TestEmitter_Normalized(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(Namespace, &buf)

	e.Normalized("galleries/boda", 7, true)
	e.Normalized("home", 3, false)

	docs := decodeLines(t, &buf)
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0]["FolderKind"] != "galleries" || docs[0]["OrderNormalizedEntries"] != float64(7) {
		t.Errorf("unexpected gallery document: %v", docs[0])
	}
	if _, ok := docs[0]["OrderPersistFailed"]; ok {
		t.Error("persisted renumbering must not count a failure")
	}
	if docs[1]["FolderKind"] != "home" || docs[1]["OrderPersistFailed"] != float64(1) {
		t.Errorf("unexpected home document: %v", docs[1])
	}
}
