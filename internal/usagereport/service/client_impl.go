package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/concord/internal/config"
	"github.com/smallbiznis/concord/internal/retry"
	usagedomain "github.com/smallbiznis/concord/internal/usagereport/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const dateRangeLayout = "2006-01-02"

const statusCompleted = "Completed"

// Metric names the report must carry, keyed by the metadata origin that
// publishes them. Every name must resolve to a GUID id before any report is
// requested.
var requiredMetrics = map[string][]string{
	"Processing Statistics": {
		"Published Document Size [GB]",
		"Linked Total File Size [GB]",
		"Peak Workspace Hosted Size [GB]",
	},
	"Workspace Utilization": {
		"Translation Units",
	},
	"Product Utilization": {
		"AI Review Units",
		"AI Privilege Units",
	},
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	poll    retry.Policy
	log     *zap.Logger
}

func New(p Params) usagedomain.Client {
	api := p.Config.UsageAPI
	timeout := api.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(api.BaseURL, "/"),
		token:   api.AuthToken,
		http:    &http.Client{Timeout: timeout},
		poll:    retry.Fixed(api.PollAttempts, api.PollInterval),
		log:     p.Log.Named("usagereport.client"),
	}
}

type metadataResponse struct {
	Origins []struct {
		Name    string `json:"Name"`
		Metrics []struct {
			ID   string `json:"Id"`
			Name string `json:"Name"`
		} `json:"Metrics"`
	} `json:"Origins"`
}

type reportHandle struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// FetchUsage drives one report end to end: resolve metric ids, submit the
// definition, poll until Completed, download and parse the CSV.
func (c *Client) FetchUsage(ctx context.Context, from, to time.Time) (usagedomain.FetchResult, error) {
	var result usagedomain.FetchResult

	fields, err := c.resolveMetricIDs(ctx)
	if err != nil {
		return result, err
	}

	handle, err := c.submit(ctx, from, to, fields)
	if err != nil {
		return result, err
	}
	c.log.Info("usage report submitted",
		zap.String("report_id", handle.ID),
		zap.String("from", from.Format(dateRangeLayout)),
		zap.String("to", to.Format(dateRangeLayout)))

	if err := c.awaitCompletion(ctx, handle.ID); err != nil {
		return result, err
	}

	payload, err := c.download(ctx, handle.ID)
	if err != nil {
		return result, err
	}

	records, lineErrors, err := ParseCSV(payload)
	if err != nil {
		return result, err
	}
	result.Records = records
	result.LineErrors = lineErrors

	c.log.Info("usage report parsed",
		zap.String("report_id", handle.ID),
		zap.Int("records", len(records)),
		zap.Int("line_errors", len(lineErrors)))
	return result, nil
}

// resolveMetricIDs maps every required metric name to its GUID id via the
// metadata endpoint. Any unresolved or malformed id aborts the run before a
// report is requested.
func (c *Client) resolveMetricIDs(ctx context.Context) ([]string, error) {
	var metadata metadataResponse
	if err := c.get(ctx, "/Metadata", &metadata); err != nil {
		return nil, fmt.Errorf("fetch usage metadata: %w", err)
	}

	byOrigin := map[string]map[string]string{}
	for _, origin := range metadata.Origins {
		metrics := map[string]string{}
		for _, metric := range origin.Metrics {
			metrics[strings.ToLower(metric.Name)] = metric.ID
		}
		byOrigin[origin.Name] = metrics
	}

	var fields []string
	var missing []string
	for origin, names := range requiredMetrics {
		metrics := byOrigin[origin]
		for _, name := range names {
			id, ok := metrics[strings.ToLower(name)]
			if !ok {
				missing = append(missing, fmt.Sprintf("%s/%s", origin, name))
				continue
			}
			if _, err := uuid.Parse(id); err != nil {
				missing = append(missing, fmt.Sprintf("%s/%s (bad id %q)", origin, name, id))
				continue
			}
			fields = append(fields, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", usagedomain.ErrMetadataUnresolved, strings.Join(missing, ", "))
	}
	return fields, nil
}

func (c *Client) submit(ctx context.Context, from, to time.Time, fields []string) (reportHandle, error) {
	body := map[string]any{
		"name": fmt.Sprintf("usage-%s", to.Format("200601")),
		"dateRange": map[string]string{
			"from": from.Format(dateRangeLayout),
			"to":   to.Format(dateRangeLayout),
		},
		"fields": fields,
	}

	var handle reportHandle
	resp, err := c.do(ctx, http.MethodPost, "/reports", body)
	if err != nil {
		return handle, fmt.Errorf("%w: %v", usagedomain.ErrSubmitRejected, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return handle, fmt.Errorf("%w: status %d", usagedomain.ErrSubmitRejected, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&handle); err != nil {
		return handle, fmt.Errorf("%w: decode handle: %v", usagedomain.ErrSubmitRejected, err)
	}
	if handle.ID == "" {
		return handle, fmt.Errorf("%w: empty report id", usagedomain.ErrSubmitRejected)
	}
	return handle, nil
}

// awaitCompletion polls the report status on a fixed delay until it reads
// Completed (case-insensitive) or the attempts run out. Exhaustion is a run
// failure for this period; no partial data is consumed.
func (c *Client) awaitCompletion(ctx context.Context, reportID string) error {
	err := c.poll.Do(ctx, func(attempt int) (bool, error) {
		var handle reportHandle
		if err := c.get(ctx, "/reports/"+reportID, &handle); err != nil {
			c.log.Warn("usage report status check failed",
				zap.String("report_id", reportID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return false, err
		}
		if strings.EqualFold(handle.Status, statusCompleted) {
			return true, nil
		}
		c.log.Debug("usage report not ready",
			zap.String("report_id", reportID),
			zap.String("status", handle.Status),
			zap.Int("attempt", attempt))
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("%w: report %s: %v", usagedomain.ErrPollTimeout, reportID, err)
	}
	return nil
}

func (c *Client) download(ctx context.Context, reportID string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/reports/download/"+reportID, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", usagedomain.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", usagedomain.ErrDownloadFailed, resp.StatusCode)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", usagedomain.ErrDownloadFailed, err)
	}
	return string(payload), nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}
