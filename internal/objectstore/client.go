package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the object-store service over HTTP JSON.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

type ClientConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		authToken: cfg.AuthToken,
		http:      &http.Client{Timeout: timeout},
	}
}

type createRequest struct {
	ObjectType int          `json:"objectType"`
	Values     []FieldValue `json:"values"`
}

type createResponse struct {
	ArtifactID int `json:"artifactId"`
}

func (c *Client) Create(ctx context.Context, objectType int, values []FieldValue) (int, error) {
	var resp createResponse
	err := c.do(ctx, http.MethodPost, "/Objects", createRequest{ObjectType: objectType, Values: values}, &resp)
	if err != nil {
		return 0, err
	}
	if resp.ArtifactID <= 0 {
		return 0, &Error{Kind: KindRejected, Detail: "create returned no artifact id"}
	}
	return resp.ArtifactID, nil
}

type updateRequest struct {
	Values []FieldValue `json:"values"`
}

func (c *Client) Update(ctx context.Context, artifactID int, values []FieldValue) error {
	path := fmt.Sprintf("/Objects/%d", artifactID)
	return c.do(ctx, http.MethodPatch, path, updateRequest{Values: values}, nil)
}

func (c *Client) Delete(ctx context.Context, artifactID int) error {
	path := fmt.Sprintf("/Objects/%d", artifactID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

type massUpdateRequest struct {
	ArtifactIDs []int              `json:"artifactIds"`
	Values      []FieldValue       `json:"values"`
	Behavior    MassUpdateBehavior `json:"behavior"`
}

func (c *Client) MassUpdate(ctx context.Context, artifactIDs []int, values []FieldValue, behavior MassUpdateBehavior) (MassUpdateResult, error) {
	var resp MassUpdateResult
	err := c.do(ctx, http.MethodPost, "/Objects/MassUpdate", massUpdateRequest{
		ArtifactIDs: artifactIDs,
		Values:      values,
		Behavior:    behavior,
	}, &resp)
	if err != nil {
		return MassUpdateResult{}, err
	}
	return resp, nil
}

type queryRequest struct {
	ObjectType int       `json:"objectType"`
	Condition  Condition `json:"condition,omitempty"`
}

type queryResponse struct {
	Rows []Row `json:"rows"`
}

func (c *Client) Query(ctx context.Context, objectType int, cond Condition) ([]Row, error) {
	var resp queryResponse
	err := c.do(ctx, http.MethodPost, "/Objects/Query", queryRequest{ObjectType: objectType, Condition: cond}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindValidation, Detail: "encode request", Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindValidation, Detail: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Detail: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Detail: method + " " + path}
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		detail := readErrorDetail(resp.Body)
		return &Error{Kind: KindValidation, Detail: detail}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		detail := fmt.Sprintf("%s %s: status %d", method, path, resp.StatusCode)
		return &Error{Kind: KindRejected, Detail: detail}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindTransport, Detail: "decode response", Err: err}
	}
	return nil
}

func readErrorDetail(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
	}
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "request rejected"
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return "request rejected"
}
