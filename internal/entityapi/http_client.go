package entityapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the hosted entity API, JSON in/out.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type filterRequest struct {
	Query Filter `json:"query"`
	Sort  string `json:"sort,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type conditionalRequest struct {
	Guard  Filter   `json:"guard"`
	Fields Document `json:"fields"`
}

func (c *Client) List(ctx context.Context, entity, sort string) ([]Document, error) {
	path := "/api/entities/" + entity
	if sort != "" {
		path += "?sort=" + url.QueryEscape(sort)
	}
	var docs []Document
	if err := c.do(ctx, http.MethodGet, path, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) Filter(ctx context.Context, entity string, query Filter, sort string, limit int) ([]Document, error) {
	var docs []Document
	body := filterRequest{Query: query, Sort: sort, Limit: limit}
	if err := c.do(ctx, http.MethodPost, "/api/entities/"+entity+"/filter", body, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) Get(ctx context.Context, entity, id string) (Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, "/api/entities/"+entity+"/"+id, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) Create(ctx context.Context, entity string, fields Document) (Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodPost, "/api/entities/"+entity, fields, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) Update(ctx context.Context, entity, id string, fields Document) (Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodPatch, "/api/entities/"+entity+"/"+id, fields, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) UpdateWhere(ctx context.Context, entity, id string, guard Filter, fields Document) (Document, error) {
	var doc Document
	body := conditionalRequest{Guard: guard, Fields: fields}
	if err := c.do(ctx, http.MethodPost, "/api/entities/"+entity+"/"+id+"/conditional", body, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) Delete(ctx context.Context, entity, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/entities/"+entity+"/"+id, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("entity api request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrConflict
	case resp.StatusCode >= 400:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("entity api %s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding entity api response: %w", err)
	}
	return nil
}
