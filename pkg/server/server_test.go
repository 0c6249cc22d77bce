package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockframe/blockframe/pkg/errs"
	"github.com/blockframe/blockframe/pkg/manifest"
	"github.com/blockframe/blockframe/pkg/server"
)

type fakeSource struct {
	manifests map[string]*manifest.Manifest
	data      map[string][]byte
	segments  map[string][]byte
	parity    map[string][]byte
}

func (s *fakeSource) ListFiles(context.Context) ([]string, error) {
	names := make([]string, 0, len(s.manifests))
	for n := range s.manifests {
		names = append(names, n)
	}

	return names, nil
}

func (s *fakeSource) GetManifest(_ context.Context, name string) (*manifest.Manifest, error) {
	m, ok := s.manifests[name]
	if !ok {
		return nil, errs.Wrap(errs.NotFound, "no such file", nil)
	}

	return m, nil
}

func (s *fakeSource) ReadSegment(_ context.Context, name string, segmentID int) ([]byte, error) {
	data, ok := s.segments[name]
	if !ok {
		return nil, errs.Wrap(errs.NotFound, "no such segment", nil)
	}

	return data, nil
}

func (s *fakeSource) ReadBlockSegment(_ context.Context, name string, blockID, segmentID int) ([]byte, error) {
	return s.segments[name], nil
}

func (s *fakeSource) ReadParity(_ context.Context, name string, segmentID, parityID int, blockID *int) ([]byte, error) {
	return s.parity[name], nil
}

func (s *fakeSource) ReadData(_ context.Context, name string) ([]byte, error) {
	data, ok := s.data[name]
	if !ok {
		return nil, errs.Wrap(errs.NotFound, "no such file", nil)
	}

	return data, nil
}

func newTestServer() (*httptest.Server, *fakeSource) {
	src := &fakeSource{
		manifests: map[string]*manifest.Manifest{},
		data:      map[string][]byte{},
		segments:  map[string][]byte{},
		parity:    map[string][]byte{},
	}

	return httptest.NewServer(server.New(src)), src
}

func TestListFiles(t *testing.T) {
	t.Parallel()

	ts, src := newTestServer()
	defer ts.Close()

	src.manifests["a.txt"] = &manifest.Manifest{Name: "a.txt", Size: 10, Tier: manifest.TierTiny}

	resp, err := http.Get(ts.URL + "/api/files")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []struct {
		Name string        `json:"name"`
		Size int64         `json:"size"`
		Tier manifest.Tier `json:"tier"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	require.Equal(t, "a.txt", got[0].Name)
}

func TestGetManifest(t *testing.T) {
	t.Parallel()

	ts, src := newTestServer()
	defer ts.Close()

	src.manifests["a.txt"] = &manifest.Manifest{Name: "a.txt", Size: 10, Tier: manifest.TierTiny}

	resp, err := http.Get(ts.URL + "/api/files/a.txt/manifest")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got manifest.Manifest
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "a.txt", got.Name)
}

func TestGetManifestNotFound(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/files/missing.txt/manifest")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetDataTier1(t *testing.T) {
	t.Parallel()

	ts, src := newTestServer()
	defer ts.Close()

	src.manifests["a.txt"] = &manifest.Manifest{Name: "a.txt", Size: 5, Tier: manifest.TierTiny}
	src.data["a.txt"] = []byte("hello")

	resp, err := http.Get(ts.URL + "/api/files/a.txt")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
}

func TestGetDataTier2ReturnsNotAcceptable(t *testing.T) {
	t.Parallel()

	ts, src := newTestServer()
	defer ts.Close()

	src.manifests["b.bin"] = &manifest.Manifest{Name: "b.bin", Size: 100, Tier: manifest.TierSegmented}

	resp, err := http.Get(ts.URL + "/api/files/b.bin")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotAcceptable, resp.StatusCode)
}

func TestGetSegment(t *testing.T) {
	t.Parallel()

	ts, src := newTestServer()
	defer ts.Close()

	src.segments["b.bin"] = []byte("segment-bytes")

	resp, err := http.Get(ts.URL + "/api/files/b.bin/segment/3")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "segment-bytes", string(body))
}

func TestGetParityRequiresParityID(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/files/a.txt/parity")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetParityWithBlockID(t *testing.T) {
	t.Parallel()

	ts, src := newTestServer()
	defer ts.Close()

	src.parity["c.bin"] = []byte("parity-bytes")

	resp, err := http.Get(ts.URL + "/api/files/c.bin/parity?block_id=2&parity_id=0")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "parity-bytes", string(body))
}
