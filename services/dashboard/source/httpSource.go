package source

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/tidwall/gjson"
)

const (
	metricsAllPath     = "/api/v1/metrics/all"
	metricsPathPrefix  = "/api/v1/metrics/"
	systemOverviewPath = "/api/v1/system/overview"
	systemPathPrefix   = "/api/v1/system/"
	healthPath         = "/api/v1/health"

	maxErrorBodyLen = 512
)

var log = logger.GetOrCreate("source")

var metricDomains = map[string]struct{}{
	"cpu":     {},
	"memory":  {},
	"disk":    {},
	"network": {},
}

var systemDomains = map[string]struct{}{
	"processes": {},
	"services":  {},
	"security":  {},
}

// ArgsHTTPSource holds the arguments needed to create a new HTTP source
type ArgsHTTPSource struct {
	BaseURL string
	Timeout time.Duration
}

type httpSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a new source able to query the PiVitals backend API
func NewHTTPSource(args ArgsHTTPSource) (*httpSource, error) {
	if len(args.BaseURL) == 0 {
		return nil, ErrEmptyBaseURL
	}
	if args.Timeout <= 0 {
		return nil, ErrInvalidTimeout
	}

	return &httpSource{
		baseURL: strings.TrimRight(args.BaseURL, "/"),
		client: &http.Client{
			Timeout: args.Timeout,
		},
	}, nil
}

// FetchAllMetrics returns the combined cpu/memory/disk/network snapshot
func (s *httpSource) FetchAllMetrics(ctx context.Context) (*common.MetricsPayload, error) {
	body, status, err := s.get(ctx, metricsAllPath)
	if err != nil {
		return nil, err
	}

	values, err := requireKeys(metricsAllPath, status, body, "cpu", "memory", "disk", "network")
	if err != nil {
		return nil, err
	}

	return &common.MetricsPayload{
		CPU:     values[0],
		Memory:  values[1],
		Disk:    values[2],
		Network: values[3],
	}, nil
}

// FetchMetric returns a single metric domain (cpu, memory, disk or network)
func (s *httpSource) FetchMetric(ctx context.Context, domain string) (json.RawMessage, error) {
	_, ok := metricDomains[domain]
	if !ok {
		return nil, errUnknownDomain(domain)
	}

	return s.getRaw(ctx, metricsPathPrefix+domain)
}

// FetchOverview returns the combined processes/services/security payload
func (s *httpSource) FetchOverview(ctx context.Context) (*common.SystemOverview, error) {
	body, status, err := s.get(ctx, systemOverviewPath)
	if err != nil {
		return nil, err
	}

	values, err := requireKeys(systemOverviewPath, status, body, "processes", "services", "security")
	if err != nil {
		return nil, err
	}

	return &common.SystemOverview{
		Processes: values[0],
		Services:  values[1],
		Security:  values[2],
	}, nil
}

// FetchSystemInfo returns a single system domain (processes, services or security)
func (s *httpSource) FetchSystemInfo(ctx context.Context, domain string) (json.RawMessage, error) {
	_, ok := systemDomains[domain]
	if !ok {
		return nil, errUnknownDomain(domain)
	}

	return s.getRaw(ctx, systemPathPrefix+domain)
}

// Health probes the backend liveness endpoint
func (s *httpSource) Health(ctx context.Context) error {
	_, _, err := s.get(ctx, healthPath)
	return err
}

func (s *httpSource) getRaw(ctx context.Context, path string) (json.RawMessage, error) {
	body, status, err := s.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, &ServerError{Path: path, StatusCode: status, Err: errMalformedBody}
	}

	return body, nil
}

func (s *httpSource) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, 0, &TransportError{Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Debug("request failed", "path", path, "error", err)
		return nil, 0, &TransportError{Path: path, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		log.Warn("backend responded with error status", "path", path, "status", resp.StatusCode, "body", string(errBody))
		return nil, resp.StatusCode, &ServerError{Path: path, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, resp.StatusCode, &TransportError{Path: path, Err: err}
		}
		return nil, resp.StatusCode, &ServerError{Path: path, StatusCode: resp.StatusCode, Err: err}
	}

	return body, resp.StatusCode, nil
}

// requireKeys extracts the given top level keys from the body, in order
func requireKeys(path string, status int, body []byte, keys ...string) ([]json.RawMessage, error) {
	if !gjson.ValidBytes(body) {
		return nil, &ServerError{Path: path, StatusCode: status, Err: errMalformedBody}
	}

	results := gjson.GetManyBytes(body, keys...)
	values := make([]json.RawMessage, 0, len(keys))
	for i, result := range results {
		if !result.Exists() {
			return nil, &ServerError{Path: path, StatusCode: status, Err: errMissingKey(keys[i])}
		}
		values = append(values, json.RawMessage(result.Raw))
	}

	return values, nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *httpSource) IsInterfaceNil() bool {
	return s == nil
}
