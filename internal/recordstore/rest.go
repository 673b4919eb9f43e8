package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// queryPageSize is the page size used when a query has no explicit limit.
const queryPageSize = 1000

// RESTConfig holds the connection settings of the hosted record store.
// It is built once at process start and passed to NewRESTClient.
type RESTConfig struct {
	// BaseURL is the API root including any mount path, e.g. https://host/parse.
	BaseURL      string
	AppID        string
	RESTKey      string
	SessionToken string
	// Timeout bounds each HTTP call. Zero leaves the transport defaults.
	Timeout time.Duration
}

// RESTClient implements Gateway against a Parse-compatible REST API.
type RESTClient struct {
	httpClient *http.Client
	baseURL    string
	mountPath  string
	appID      string
	restKey    string
	session    string
}

// Compile-time interface check.
var _ Gateway = (*RESTClient)(nil)

// NewRESTClient creates a REST gateway from cfg.
func NewRESTClient(cfg RESTConfig) (*RESTClient, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid record store URL %q", cfg.BaseURL)
	}
	if cfg.AppID == "" {
		return nil, fmt.Errorf("record store application id is required")
	}
	return &RESTClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    u.String(),
		mountPath:  u.Path,
		appID:      cfg.AppID,
		restKey:    cfg.RESTKey,
		session:    cfg.SessionToken,
	}, nil
}

// apiError is the error body returned by the store.
type apiError struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

// createResponse is the body returned by POST /classes/<collection>.
type createResponse struct {
	ObjectID  string `json:"objectId"`
	CreatedAt string `json:"createdAt"`
}

// queryResponse is the body returned by GET /classes/<collection>.
type queryResponse struct {
	Results []Record `json:"results"`
}

// batchItemResult is one element of the /batch response array.
type batchItemResult struct {
	Success json.RawMessage `json:"success,omitempty"`
	Error   *apiError       `json:"error,omitempty"`
}

func (c *RESTClient) Query(ctx context.Context, collection string, q Query) ([]Record, error) {
	params := url.Values{}
	if len(q.Where) > 0 {
		where, err := json.Marshal(q.Where)
		if err != nil {
			return nil, fmt.Errorf("marshal where: %w", err)
		}
		params.Set("where", string(where))
	}
	if q.Order != "" {
		params.Set("order", q.Order)
	}

	pageSize := queryPageSize
	if q.Limit > 0 && q.Limit < pageSize {
		pageSize = q.Limit
	}
	params.Set("limit", strconv.Itoa(pageSize))

	var records []Record
	for skip := 0; ; skip += pageSize {
		if skip > 0 {
			params.Set("skip", strconv.Itoa(skip))
		}
		var resp queryResponse
		if err := c.do(ctx, http.MethodGet, "/classes/"+collection, params, nil, &resp); err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		for _, rec := range resp.Results {
			records = append(records, normalizeRecord(rec))
		}
		if len(resp.Results) < pageSize || (q.Limit > 0 && len(records) >= q.Limit) {
			break
		}
	}
	if q.Limit > 0 && len(records) > q.Limit {
		records = records[:q.Limit]
	}

	log.Debug().Str("collection", collection).Int("count", len(records)).Msg("Record store query complete")
	return records, nil
}

func (c *RESTClient) Create(ctx context.Context, collection string, body map[string]any) (Record, error) {
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, "/classes/"+collection, nil, body, &resp); err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}

	rec := make(Record, len(body)+2)
	for k, v := range body {
		rec[k] = v
	}
	rec[FieldID] = resp.ObjectID
	if resp.CreatedAt != "" {
		rec[FieldCreatedAt] = resp.CreatedAt
	} else {
		rec[FieldCreatedAt] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return rec, nil
}

func (c *RESTClient) Update(ctx context.Context, collection, id string, body map[string]any) error {
	if err := c.do(ctx, http.MethodPut, ObjectPath(collection, id), nil, body, nil); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (c *RESTClient) Delete(ctx context.Context, collection, id string) error {
	if err := c.do(ctx, http.MethodDelete, ObjectPath(collection, id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (c *RESTClient) Batch(ctx context.Context, requests []BatchRequest) error {
	for i, chunk := range Chunk(requests, BatchSize) {
		payload := make([]BatchRequest, len(chunk))
		for j, req := range chunk {
			req.Path = c.mountPath + req.Path
			payload[j] = req
		}

		var results []batchItemResult
		if err := c.do(ctx, http.MethodPost, "/batch", nil, map[string]any{"requests": payload}, &results); err != nil {
			return fmt.Errorf("batch chunk %d (%d requests): %w", i, len(chunk), err)
		}
		for j, res := range results {
			if res.Error != nil {
				return fmt.Errorf("batch chunk %d item %d (%s %s): %w", i, j, chunk[j].Method, chunk[j].Path,
					&RequestError{Status: statusForCode(res.Error.Code), Message: res.Error.Error})
			}
		}
		log.Debug().Int("chunk", i).Int("requests", len(chunk)).Msg("Record store batch applied")
	}
	return nil
}

// do executes one request. out may be nil; an empty body leaves out untouched.
func (c *RESTClient) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Parse-Application-Id", c.appID)
	if c.restKey != "" {
		req.Header.Set("X-Parse-REST-API-Key", c.restKey)
	}
	if c.session != "" {
		req.Header.Set("X-Parse-Session-Token", c.session)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Status: resp.StatusCode, Message: "read response: " + err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &RequestError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// normalizeRecord copies the store's objectId into the common id field.
func normalizeRecord(rec Record) Record {
	if id, ok := rec["objectId"].(string); ok {
		rec[FieldID] = id
		delete(rec, "objectId")
	}
	return rec
}

// statusForCode maps store error codes inside batch results to HTTP statuses.
func statusForCode(code int) int {
	if code == 101 { // object not found
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
