// Package sth queries a FIWARE STH-Comet historical store for raw attribute
// samples.
package sth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/banshee-data/sensors.dashboard/internal/httputil"
	"github.com/banshee-data/sensors.dashboard/internal/metrics"
	"github.com/banshee-data/sensors.dashboard/internal/monitoring"
)

// FIWARE tenancy headers and their defaults.
const (
	HeaderService      = "fiware-service"
	HeaderServicePath  = "fiware-servicepath"
	DefaultService     = "smart"
	DefaultServicePath = "/"
)

// valuesPath locates the sample array inside the STH response envelope.
const valuesPath = "contextResponses.0.contextElement.attributes.0.values"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// ErrMalformedEnvelope is returned by ParseEnvelope when the body does not have
// the expected shape.
var ErrMalformedEnvelope = errors.New("malformed STH envelope")

// Query selects the most recent LastN samples of one attribute on one entity.
type Query struct {
	EntityType string
	EntityID   string
	Attribute  string
	LastN      int
}

// Sample is one raw historical value as returned by STH-Comet.
type Sample struct {
	AttrValue string `json:"attrValue"`
	RecvTime  string `json:"recvTime"`
}

// Client provides read-only STH-Comet queries.
type Client struct {
	HTTPClient  httputil.HTTPClient
	BaseURL     string
	Service     string
	ServicePath string
}

// NewClient creates a client for the STH instance at baseURL
// (e.g. "http://52.137.83.133:8666").
func NewClient(httpClient httputil.HTTPClient, baseURL string) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(nil)
	}
	return &Client{
		HTTPClient:  httpClient,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Service:     DefaultService,
		ServicePath: DefaultServicePath,
	}
}

// URL builds the history URL for q.
func (c *Client) URL(q Query) string {
	return fmt.Sprintf("%s/STH/v1/contextEntities/type/%s/id/%s/attributes/%s?lastN=%s",
		c.BaseURL,
		url.PathEscape(q.EntityType),
		url.PathEscape(q.EntityID),
		url.PathEscape(q.Attribute),
		strconv.Itoa(q.LastN),
	)
}

// Fetch returns the most recent samples for q, oldest first as delivered by
// STH. Every failure (transport, non-200, malformed body) is logged and yields
// an empty result; Fetch never returns an error.
func (c *Client) Fetch(ctx context.Context, q Query) []Sample {
	start := time.Now()
	log := monitoring.WithSignal(q.Attribute).WithField("entity", q.EntityID)
	target := c.URL(q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		log.Warnf("building request for %s: %v", target, err)
		metrics.ObserveFetch(q.Attribute, metrics.OutcomeTransportError, time.Since(start))
		return nil
	}
	req.Header.Set(HeaderService, c.Service)
	req.Header.Set(HeaderServicePath, c.ServicePath)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Warnf("error accessing %s: %v", target, err)
		metrics.ObserveFetch(q.Attribute, metrics.OutcomeTransportError, time.Since(start))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		log.Warnf("error accessing %s: status %d", target, resp.StatusCode)
		metrics.ObserveFetch(q.Attribute, metrics.OutcomeHTTPError, time.Since(start))
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Warnf("reading body from %s: %v", target, err)
		metrics.ObserveFetch(q.Attribute, metrics.OutcomeTransportError, time.Since(start))
		return nil
	}

	samples, err := ParseEnvelope(body)
	if err != nil {
		log.Warnf("key error in response from %s: %v", target, err)
		metrics.ObserveFetch(q.Attribute, metrics.OutcomeMalformed, time.Since(start))
		return nil
	}

	metrics.ObserveFetch(q.Attribute, metrics.OutcomeOK, time.Since(start))
	log.Debugf("fetched %d samples", len(samples))
	return samples
}

// ParseEnvelope extracts the samples from an STH response body. Elements
// without both attrValue and recvTime are dropped.
func ParseEnvelope(body []byte) ([]Sample, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedEnvelope)
	}
	values := gjson.GetBytes(body, valuesPath)
	if !values.Exists() {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedEnvelope, valuesPath)
	}
	if !values.IsArray() {
		return nil, fmt.Errorf("%w: %s is not an array", ErrMalformedEnvelope, valuesPath)
	}

	elems := values.Array()
	samples := make([]Sample, 0, len(elems))
	skipped := 0
	for _, el := range elems {
		v := el.Get("attrValue")
		rt := el.Get("recvTime")
		if !v.Exists() || !rt.Exists() {
			skipped++
			continue
		}
		samples = append(samples, Sample{AttrValue: v.String(), RecvTime: rt.String()})
	}
	if skipped > 0 {
		monitoring.Logf("skipped %d STH values without attrValue/recvTime", skipped)
	}
	return samples, nil
}
