// Package client is a typed HTTP client for the row-share API plus an
// in-memory Store that keeps the fetched state fresh.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL matches the /api mount of the server.
const DefaultBaseURL = "http://localhost:8080/api"

// APIError is a non-2xx response.
type APIError struct {
	Status          int
	Message         string
	Troubleshooting []string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// Client calls the row-share endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client. An empty baseURL uses DefaultBaseURL and a nil
// httpClient gets a 30s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Upload sends a spreadsheet as base64 JSON.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (UploadResult, error) {
	var out UploadResult
	err := c.do(ctx, http.MethodPost, "/upload", nil, uploadRequest{
		File:     base64.StdEncoding.EncodeToString(data),
		Filename: filename,
	}, nil, &out)
	return out, err
}

// Data fetches one table, or every table merged when tableID is empty.
func (c *Client) Data(ctx context.Context, tableID string, showAll bool) (Dataset, error) {
	var out Dataset
	err := c.do(ctx, http.MethodGet, "/data", tableQuery(tableID, showAll), nil, nil, &out)
	return out, err
}

// Tables lists table metadata.
func (c *Client) Tables(ctx context.Context, showAll bool) ([]Table, error) {
	var out tablesResponse
	if err := c.do(ctx, http.MethodGet, "/tables", tableQuery("", showAll), nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Tables == nil {
		out.Tables = []Table{}
	}
	return out.Tables, nil
}

// ErrMissingRowID is returned when a delete names no row.
var ErrMissingRowID = errors.New("row id is required")

// Delete removes one row, or everything when id is "all". A blank id is
// rejected because the server reads a missing id as "all".
func (c *Client) Delete(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrMissingRowID
	}
	var out messageResponse
	err := c.do(ctx, http.MethodDelete, "/delete", url.Values{"id": {id}}, nil, nil, &out)
	return out.Message, err
}

// Search runs a server-side search.
func (c *Client) Search(ctx context.Context, p SearchParams) (SearchResult, error) {
	q := tableQuery(p.TableID, p.ShowAll)
	if p.Query != "" {
		q.Set("q", p.Query)
	}
	if p.Column != "" {
		q.Set("column", p.Column)
	}
	if p.Value != "" {
		q.Set("value", p.Value)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	var out SearchResult
	err := c.do(ctx, http.MethodGet, "/data/search", q, nil, nil, &out)
	return out, err
}

// FilterValues returns the distinct values of a column.
func (c *Client) FilterValues(ctx context.Context, tableID string, showAll bool, column string) ([]string, error) {
	q := tableQuery(tableID, showAll)
	q.Set("column", column)
	var out filterValuesResponse
	err := c.do(ctx, http.MethodGet, "/data/filter-values", q, nil, nil, &out)
	return out.Values, err
}

// Share builds the share text and deep link for a row.
func (c *Client) Share(ctx context.Context, rowID string) (Share, error) {
	var out Share
	err := c.do(ctx, http.MethodGet, "/share/"+url.PathEscape(rowID), nil, nil, nil, &out)
	return out, err
}

// Sweep triggers the retention sweep with the cron secret.
func (c *Client) Sweep(ctx context.Context, secret string) (SweepResult, error) {
	var out SweepResult
	err := c.do(ctx, http.MethodPost, "/cron/auto-delete", nil, nil,
		map[string]string{"Authorization": "Bearer " + secret}, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, header map[string]string, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var flat struct {
			Error           string   `json:"error"`
			Troubleshooting []string `json:"troubleshooting"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &flat) == nil {
			apiErr.Message = flat.Error
			apiErr.Troubleshooting = flat.Troubleshooting
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func tableQuery(tableID string, showAll bool) url.Values {
	q := url.Values{}
	if tableID != "" {
		q.Set("tableId", tableID)
	}
	if showAll {
		q.Set("showAll", "true")
	}
	return q
}
