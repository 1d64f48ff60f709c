package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/parcelscope/api/internal/logger"
	"github.com/parcelscope/api/internal/retry"
)

// maxErrorBodyBytes bounds how much of a failing response is kept for
// diagnosis in the job ledger and the trigger response.
const maxErrorBodyBytes = 300

// SourceError is returned when the external GIS API answers with a
// non-success status or an error payload. It carries the failing request and
// a truncated response body so a failed run can be diagnosed from the ledger.
type SourceError struct {
	URL        string
	Body       string
	StatusCode int
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source API error: HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Feature is one raw record from a source page: the attribute bag plus the
// geometry exactly as the source encoded it.
type Feature struct {
	Attributes map[string]interface{}
	Geometry   json.RawMessage
	Sequence   int64
}

// Page is one fetched batch of features. MaxSequence is the highest
// source-side sequence number observed in the page and becomes the next
// resume cursor.
type Page struct {
	Features    []Feature
	MaxSequence int64
}

// Client fetches pages of parcel features from a county's GIS REST endpoint.
type Client interface {
	// FetchPage requests up to pageSize records with sequence > cursor,
	// ordered by ascending sequence. An empty page means the source is
	// exhausted.
	FetchPage(ctx context.Context, fm FieldMap, cursor int64, pageSize int) (*Page, error)
}

// HTTPClient is the production Client over net/http with a shared retry
// policy. Transient failures (network errors, 5xx, 429) are retried; any
// other non-success response is permanent and fails the run.
type HTTPClient struct {
	http   *http.Client
	policy retry.Policy
	log    *logger.Logger
}

// NewHTTPClient creates an HTTPClient with the given request timeout.
func NewHTTPClient(timeout time.Duration, policy retry.Policy, log *logger.Logger) *HTTPClient {
	return &HTTPClient{
		http:   &http.Client{Timeout: timeout},
		policy: policy,
		log:    log,
	}
}

// FetchPage implements Client.
func (c *HTTPClient) FetchPage(ctx context.Context, fm FieldMap, cursor int64, pageSize int) (*Page, error) {
	requestURL := c.buildQueryURL(fm, cursor, pageSize)

	var body []byte
	err := c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("source request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read source response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			srcErr := &SourceError{
				URL:        requestURL,
				StatusCode: resp.StatusCode,
				Body:       truncate(string(data), maxErrorBodyBytes),
			}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return srcErr
			}
			return retry.Permanent(srcErr)
		}

		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	return c.parsePage(requestURL, fm, body)
}

// buildQueryURL assembles the paged range query. The cursor filter and the
// adapter's optional row filter are combined with AND.
func (c *HTTPClient) buildQueryURL(fm FieldMap, cursor int64, pageSize int) string {
	where := fmt.Sprintf("%s > %d", fm.SequenceField, cursor)
	if fm.Where != "" {
		where = fmt.Sprintf("%s AND (%s)", where, fm.Where)
	}

	params := url.Values{}
	params.Set("where", where)
	params.Set("outFields", "*")
	params.Set("returnGeometry", "true")
	params.Set("outSR", "4326")
	params.Set("f", "geojson")
	params.Set("orderByFields", fm.SequenceField+" ASC")
	params.Set("resultRecordCount", strconv.Itoa(pageSize))

	return fm.BaseURL + "/query?" + params.Encode()
}

// parsePage decodes a GeoJSON feature collection and extracts the max
// sequence number. Some Esri servers answer HTTP 200 with an embedded error
// object; that is treated the same as a non-success status.
func (c *HTTPClient) parsePage(requestURL string, fm FieldMap, body []byte) (*Page, error) {
	var payload struct {
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
			Geometry   json.RawMessage        `json:"geometry"`
			ID         json.Number            `json:"id"`
		} `json:"features"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &SourceError{
			URL:        requestURL,
			StatusCode: http.StatusOK,
			Body:       truncate(string(body), maxErrorBodyBytes),
		}
	}

	if payload.Error != nil {
		return nil, &SourceError{
			URL:        requestURL,
			StatusCode: payload.Error.Code,
			Body:       truncate(payload.Error.Message, maxErrorBodyBytes),
		}
	}

	page := &Page{Features: make([]Feature, 0, len(payload.Features))}
	for _, f := range payload.Features {
		seq, ok := sequenceOf(f.Properties, fm.SequenceField)
		if !ok {
			// Fall back to the feature-level id, which Esri GeoJSON sets
			// to the object ID when the layer has one.
			if id, err := f.ID.Int64(); err == nil {
				seq = id
			}
		}

		page.Features = append(page.Features, Feature{
			Attributes: f.Properties,
			Geometry:   f.Geometry,
			Sequence:   seq,
		})
		if seq > page.MaxSequence {
			page.MaxSequence = seq
		}
	}

	c.log.Debug("Fetched source page", map[string]interface{}{
		"url":          fm.BaseURL,
		"features":     len(page.Features),
		"max_sequence": page.MaxSequence,
	})

	return page, nil
}

// sequenceOf pulls the numeric sequence attribute out of the property bag.
func sequenceOf(attrs map[string]interface{}, field string) (int64, bool) {
	v, ok := attrs[field]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
