// Package metrics emits CloudWatch Embedded Metric Format (EMF) documents.
// Each document is one JSON line on the configured writer (stdout on
// Lambda), from which CloudWatch extracts the metrics without API calls.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Namespace is the CloudWatch namespace of the portfolio metrics.
const Namespace = "PhotoPortfolio"

// Standard CloudWatch metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitNone         = "None"
)

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

type emfDirective struct {
	Timestamp         int64      `json:"Timestamp"`
	CloudWatchMetrics []cwMetric `json:"CloudWatchMetrics"`
}

type cwMetric struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

// Emitter writes EMF documents for one namespace. It is safe for concurrent
// use; each document is written with a single Write call.
type Emitter struct {
	namespace    string
	functionName string

	mu  sync.Mutex
	out io.Writer
}

// NewEmitter creates an Emitter writing to out (os.Stdout when nil). The
// FunctionName dimension is taken from AWS_LAMBDA_FUNCTION_NAME when set.
func NewEmitter(namespace string, out io.Writer) *Emitter {
	if out == nil {
		out = os.Stdout
	}
	return &Emitter{
		namespace:    namespace,
		functionName: os.Getenv("AWS_LAMBDA_FUNCTION_NAME"),
		out:          out,
	}
}

// New starts a Recorder for one document.
func (e *Emitter) New() *Recorder {
	r := &Recorder{
		emitter:    e,
		dimensions: make(map[string]string),
		metrics:    make(map[string]metricDef),
		values:     make(map[string]any),
		properties: make(map[string]any),
	}
	if e.functionName != "" {
		r.dimensions["FunctionName"] = e.functionName
	}
	return r
}

// Request records latency and count of one HTTP request.
func (e *Emitter) Request(endpoint, method string, status int, elapsed time.Duration) {
	e.New().
		Dimension("Endpoint", endpoint).
		Metric("RequestLatencyMs", float64(elapsed.Milliseconds()), UnitMilliseconds).
		Count("RequestCount").
		Property("method", method).
		Property("statusCode", status).
		Flush()
}

// Normalized records a folder renumbering. Its signature matches the photo
// order engine's normalize observer.
func (e *Emitter) Normalized(folderKey string, entries int, persisted bool) {
	r := e.New().
		Dimension("FolderKind", folderKind(folderKey)).
		Count("OrderNormalized").
		Metric("OrderNormalizedEntries", float64(entries), UnitCount).
		Property("folder", folderKey)
	if !persisted {
		r.Count("OrderPersistFailed")
	}
	r.Flush()
}

// folderKind keeps the dimension low-cardinality: every gallery shares one
// value.
func folderKind(key string) string {
	if i := strings.Index(key, "/"); i > 0 {
		return key[:i]
	}
	return key
}

// Recorder accumulates dimensions, metrics, and properties for one document.
// It is not safe for concurrent use; create one per operation.
type Recorder struct {
	emitter    *Emitter
	dimensions map[string]string
	metrics    map[string]metricDef
	values     map[string]any
	properties map[string]any
}

// Dimension adds an indexed dimension.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a named metric value with a CloudWatch unit.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.metrics[name] = metricDef{Name: name, Unit: unit}
	r.values[name] = value
	return r
}

// Count records a count metric with value 1.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Property adds a non-metric field, searchable in Logs Insights.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// Flush writes the document. A Recorder without metrics writes nothing.
func (r *Recorder) Flush() {
	if len(r.metrics) == 0 {
		return
	}

	metricDefs := make([]metricDef, 0, len(r.metrics))
	for _, m := range r.metrics {
		metricDefs = append(metricDefs, m)
	}
	dimKeys := make([]string, 0, len(r.dimensions))
	for k := range r.dimensions {
		dimKeys = append(dimKeys, k)
	}

	doc := make(map[string]any, len(r.dimensions)+len(r.values)+len(r.properties)+1)
	doc["_aws"] = emfDirective{
		Timestamp: time.Now().UnixMilli(),
		CloudWatchMetrics: []cwMetric{{
			Namespace:  r.emitter.namespace,
			Dimensions: [][]string{dimKeys},
			Metrics:    metricDefs,
		}},
	}
	for k, v := range r.properties {
		doc[k] = v
	}
	for k, v := range r.dimensions {
		doc[k] = v
	}
	for k, v := range r.values {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal EMF document")
		return
	}
	data = append(data, '\n')

	r.emitter.mu.Lock()
	defer r.emitter.mu.Unlock()
	if _, err := r.emitter.out.Write(data); err != nil {
		log.Warn().Err(err).Msg("Failed to write EMF document")
	}
}
