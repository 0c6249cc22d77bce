package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/blockframe/blockframe/pkg/circuitbreaker"
	"github.com/blockframe/blockframe/pkg/errs"
	"github.com/blockframe/blockframe/pkg/manifest"
)

const (
	defaultDialerTimeout         = 3 * time.Second
	defaultResponseHeaderTimeout = 3 * time.Second

	defaultCircuitThreshold = 5
	defaultCircuitTimeout   = 30 * time.Second
)

// RemoteSource reads from a Blockframe HTTP server's read API. Repeated
// failures trip a circuit breaker so a struggling or unreachable server
// fails fast instead of stacking up blocked mount reads.
type RemoteSource struct {
	baseURL    string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
}

var _ SegmentSource = (*RemoteSource)(nil)

// NewRemoteSource returns a SegmentSource that fetches segments from the
// Blockframe server at baseURL.
func NewRemoteSource(baseURL string) *RemoteSource {
	dialer := &net.Dialer{Timeout: defaultDialerTimeout, KeepAlive: 30 * time.Second}

	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert
	transport.DialContext = dialer.DialContext
	transport.ResponseHeaderTimeout = defaultResponseHeaderTimeout

	return &RemoteSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(transport)},
		cb:         circuitbreaker.New(defaultCircuitThreshold, defaultCircuitTimeout),
	}
}

func (s *RemoteSource) ListFiles(ctx context.Context) ([]string, error) {
	var summaries []struct {
		Name string `json:"name"`
	}

	if err := s.getJSON(ctx, s.baseURL+"/api/files", &summaries); err != nil {
		return nil, err
	}

	names := make([]string, len(summaries))
	for i, f := range summaries {
		names[i] = f.Name
	}

	return names, nil
}

func (s *RemoteSource) GetManifest(ctx context.Context, name string) (*manifest.Manifest, error) {
	m := &manifest.Manifest{}

	if err := s.getJSON(ctx, s.baseURL+"/api/files/"+url.PathEscape(name)+"/manifest", m); err != nil {
		return nil, err
	}

	return m, nil
}

func (s *RemoteSource) ReadSegment(ctx context.Context, name string, segmentID int) ([]byte, error) {
	u := fmt.Sprintf("%s/api/files/%s/segment/%d", s.baseURL, url.PathEscape(name), segmentID)

	return s.getBytes(ctx, u)
}

func (s *RemoteSource) ReadBlockSegment(ctx context.Context, name string, blockID, segmentID int) ([]byte, error) {
	u := fmt.Sprintf("%s/api/files/%s/block/%d/segment/%d", s.baseURL, url.PathEscape(name), blockID, segmentID)

	return s.getBytes(ctx, u)
}

func (s *RemoteSource) ReadParity(ctx context.Context, name string, segmentID, parityID int, blockID *int) ([]byte, error) {
	q := url.Values{}
	q.Set("segment_id", strconv.Itoa(segmentID))
	q.Set("parity_id", strconv.Itoa(parityID))

	if blockID != nil {
		q.Set("block_id", strconv.Itoa(*blockID))
	}

	u := fmt.Sprintf("%s/api/files/%s/parity?%s", s.baseURL, url.PathEscape(name), q.Encode())

	return s.getBytes(ctx, u)
}

func (s *RemoteSource) ReadData(ctx context.Context, name string) ([]byte, error) {
	u := fmt.Sprintf("%s/api/files/%s", s.baseURL, url.PathEscape(name))

	return s.getBytes(ctx, u)
}

func (s *RemoteSource) getBytes(ctx context.Context, u string) ([]byte, error) {
	resp, err := s.do(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.TransientIO, "reading response body", err)
	}

	return body, nil
}

func (s *RemoteSource) getJSON(ctx context.Context, u string, out any) error {
	resp, err := s.do(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(errs.ParseError, "decoding response body", err)
	}

	return nil
}

// do performs a GET and translates transport/status errors into the
// shared error taxonomy, recording the outcome against the circuit
// breaker.
func (s *RemoteSource) do(ctx context.Context, u string) (*http.Response, error) {
	if !s.cb.AllowRequest() {
		return nil, errs.Wrap(errs.TransientIO, "remote source circuit breaker is open", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ConfigError, "building remote request", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.cb.RecordFailure()

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, errs.Wrap(errs.TransientIO, fmt.Sprintf("remote request to %q timed out", u), err)
		}

		return nil, errs.Wrap(errs.TransientIO, fmt.Sprintf("performing remote request to %q", u), err)
	}

	if resp.StatusCode == http.StatusNotFound {
		s.cb.RecordSuccess()
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		resp.Body.Close()

		return nil, errs.Wrap(errs.NotFound, fmt.Sprintf("remote resource %q", u), nil)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		s.cb.RecordFailure()
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		resp.Body.Close()

		return nil, errs.Wrap(errs.TransientIO, fmt.Sprintf("remote server error %d for %q", resp.StatusCode, u), nil)
	}

	if resp.StatusCode != http.StatusOK {
		s.cb.RecordFailure()
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		resp.Body.Close()

		return nil, errs.Wrap(errs.PermanentIO, fmt.Sprintf("unexpected status %d for %q", resp.StatusCode, u), nil)
	}

	s.cb.RecordSuccess()

	return resp, nil
}
