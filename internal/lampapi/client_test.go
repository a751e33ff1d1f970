package lampapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lampbench/internal/dummy"
	"lampbench/internal/lampapi"
)

func TestPrecheck_AgainstDummy(t *testing.T) {
	srv := httptest.NewServer(dummy.NewHandler(dummy.ServerConfig{}))
	defer srv.Close()

	c := lampapi.NewClient(srv.URL+"/", "/v1", "", srv.Client())
	require.NoError(t, c.Precheck(context.Background()))

	// The precheck lamp is cleaned up.
	resp, err := c.List(context.Background(), 10, "")
	require.NoError(t, err)
	page, hasData, hasMore := lampapi.DecodePage(resp.Body)
	assert.True(t, hasData)
	assert.True(t, hasMore)
	assert.Empty(t, page.Data)
}

func TestPrecheck_StopsAtFirstFailure(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"abc","status":true}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := lampapi.NewClient(srv.URL, "/v1", "", srv.Client()).Precheck(context.Background())
	require.Error(t, err)

	var pe *lampapi.PrecheckError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "get", pe.Step)
	assert.Equal(t, 404, pe.Status)
	assert.Equal(t, []string{"POST /v1/lamps", "GET /v1/lamps/abc"}, calls)
}

func TestPrecheck_CreateWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":true}`))
	}))
	defer srv.Close()

	err := lampapi.NewClient(srv.URL, "/v1", "", srv.Client()).Precheck(context.Background())
	var pe *lampapi.PrecheckError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "create", pe.Step)
}

func TestClient_Headers(t *testing.T) {
	var auth, requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		requestID = r.Header.Get("X-Request-Id")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := lampapi.NewClient(srv.URL, "/v1", "Bearer token", srv.Client())
	resp, err := c.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "Bearer token", auth)
	assert.Len(t, requestID, 36)
}

func TestListPath(t *testing.T) {
	assert.Equal(t, "/lamps?pageSize=25", lampapi.ListPath(25, ""))
	assert.Equal(t, "/lamps?pageSize=100&cursor=a%2Fb", lampapi.ListPath(100, "a/b"))
}

func TestDecode(t *testing.T) {
	l, ok := lampapi.DecodeLamp([]byte(`{"id":"1","status":false}`))
	assert.True(t, ok)
	assert.Equal(t, "1", l.ID)

	_, ok = lampapi.DecodeLamp([]byte(`{"id":1,"status":false}`))
	assert.False(t, ok)
	_, ok = lampapi.DecodeLamp([]byte(`not json`))
	assert.False(t, ok)

	p, hasData, hasMore := lampapi.DecodePage([]byte(`{"data":[{"id":"a","status":true}],"hasMore":true,"nextCursor":"5"}`))
	assert.True(t, hasData)
	assert.True(t, hasMore)
	assert.Equal(t, "5", p.NextCursor)
	require.Len(t, p.Data, 1)

	_, hasData, hasMore = lampapi.DecodePage([]byte(`{"items":[]}`))
	assert.False(t, hasData)
	assert.False(t, hasMore)
	assert.True(t, strings.HasPrefix(lampapi.ListPath(1, ""), "/lamps"))
}
