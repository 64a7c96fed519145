package strapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nazirov91/ra-strapi-rest/pkg/dataprovider"
)

// mockTransport is a testify mock of Transport.
type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Request(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
	args := m.Called(ctx, url, opts)
	resp, _ := args.Get(0).(*Response)
	return resp, args.Error(1)
}

func newTestProvider(t *testing.T, dialect string, transport Transport, opts ...func(*Config)) *Provider {
	t.Helper()
	cfg := &Config{
		BaseURL:   "http://h/api",
		Dialect:   dialect,
		Transport: transport,
		Logger:    hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	p, err := NewProvider(cfg)
	require.NoError(t, err)
	return p
}

func decodeJSON(t *testing.T, body []byte) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func TestNewProvider_Defaults(t *testing.T) {
	p, err := NewProvider(&Config{BaseURL: "http://localhost:1337/api"})
	require.NoError(t, err)

	assert.Equal(t, "modern", p.Dialect().Name)
	assert.Equal(t, 30*time.Second, p.config.Timeout)
	require.NotNil(t, p.config.TLSVerify)
	assert.True(t, *p.config.TLSVerify)
	assert.IsType(t, &HTTPTransport{}, p.transport)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		errorMsg string
	}{
		{name: "valid", config: &Config{BaseURL: "https://cms.example.com/api"}},
		{name: "missing base url", config: &Config{}, errorMsg: "baseUrl"},
		{name: "bad scheme", config: &Config{BaseURL: "ftp://cms.example.com"}, errorMsg: "scheme"},
		{name: "missing host", config: &Config{BaseURL: "http://"}, errorMsg: "host"},
		{name: "unknown dialect", config: &Config{BaseURL: "http://h", Dialect: "v9"}, errorMsg: "dialect"},
		{name: "negative timeout", config: &Config{BaseURL: "http://h", Timeout: -time.Second}, errorMsg: "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestProvider_GetListModern(t *testing.T) {
	transport := &mockTransport{}
	transport.On("Request", mock.Anything,
		"http://h/api/posts?sort=title:asc&pagination[start]=0&pagination[limit]=10&filters[status]_eq=draft&populate=*",
		RequestOptions{},
	).Return(&Response{Status: 200, JSON: decodeJSON(t, []byte(`{
		"data": [{"id": 1, "attributes": {"title": "a"}}],
		"meta": {"pagination": {"total": 1}}
	}`))}, nil)

	p := newTestProvider(t, "modern", transport)
	result, err := p.GetList(context.Background(), "posts", dataprovider.ListParams{
		Pagination: dataprovider.Pagination{Page: 1, PerPage: 10},
		Sort:       dataprovider.Sort{Field: "title", Order: "ASC"},
		Filter:     dataprovider.Filter{{Key: "status", Value: "draft"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, *result.Total)
	assert.Equal(t, []any{dataprovider.Record{"id": float64(1), "title": "a"}}, result.Data)
	transport.AssertExpectations(t)
}

func TestProvider_GetListInvalidPagination(t *testing.T) {
	transport := &mockTransport{}
	p := newTestProvider(t, "legacy", transport)

	for _, pg := range []dataprovider.Pagination{{Page: 0, PerPage: 10}, {Page: 1, PerPage: 0}, {Page: -1, PerPage: -1}} {
		_, err := p.GetList(context.Background(), "posts", dataprovider.ListParams{Pagination: pg})
		assert.ErrorIs(t, err, dataprovider.ErrInvalidParams)
	}
	transport.AssertNotCalled(t, "Request", mock.Anything, mock.Anything, mock.Anything)
}

func TestProvider_GetListWithCountEndpoint(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/posts/count":
			assert.Equal(t, "author=4", r.URL.RawQuery)
			fmt.Fprint(w, `31`)
		case "/posts":
			fmt.Fprint(w, `[{"id": 1}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p, err := NewProvider(&Config{
		BaseURL:   server.URL,
		Dialect:   "legacy",
		CountPath: "count",
		Logger:    hclog.NewNullLogger(),
	})
	require.NoError(t, err)

	result, err := p.GetManyReference(context.Background(), "posts", dataprovider.ListParams{
		Pagination: dataprovider.Pagination{Page: 2, PerPage: 5},
		Target:     "author_id",
		ID:         4,
	})
	require.NoError(t, err)

	assert.Equal(t, 31, *result.Total)
	assert.ElementsMatch(t, []string{
		"/posts?_sort=updated_at:DESC&_start=5&_limit=5&author=4",
		"/posts/count?author=4",
	}, paths)
}

func TestProvider_GetListMissingCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 1}]`)
	}))
	defer server.Close()

	p, err := NewProvider(&Config{BaseURL: server.URL, Dialect: "legacy"})
	require.NoError(t, err)

	_, err = p.GetList(context.Background(), "comments", dataprovider.ListParams{
		Pagination: dataprovider.Pagination{Page: 1, PerPage: 10},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCount)
	assert.Contains(t, err.Error(), "comments")
}

func TestProvider_GetOneSingleType(t *testing.T) {
	transport := &mockTransport{}
	transport.On("Request", mock.Anything, "http://h/api/homepage?populate=*", RequestOptions{}).
		Return(&Response{JSON: decodeJSON(t, []byte(`{"data": {"id": 1, "attributes": {"headline": "hi"}}}`))}, nil)

	p := newTestProvider(t, "modern", transport)
	result, err := p.GetOne(context.Background(), "homepage", dataprovider.GetOneParams{ID: dataprovider.SingleType})
	require.NoError(t, err)

	assert.Equal(t, dataprovider.Record{"id": float64(1), "headline": "hi"}, result.Data)
	transport.AssertExpectations(t)
}

func TestProvider_GetManyFallbackOrder(t *testing.T) {
	// Responses arrive in reverse order of the requests.
	delays := map[string]time.Duration{"1": 60 * time.Millisecond, "2": 30 * time.Millisecond, "3": 0}
	transport := TransportFunc(func(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
		id := strings.TrimPrefix(url, "http://h/api/posts/")
		time.Sleep(delays[id])
		return &Response{JSON: map[string]any{"id": id}}, nil
	})

	p := newTestProvider(t, "legacy", transport)
	result, err := p.GetMany(context.Background(), "posts", dataprovider.GetManyParams{
		IDs: []any{"1", map[string]any{"id": "2"}, nil, "", map[string]any{"data": map[string]any{"id": "3"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, []any{
		dataprovider.Record{"id": "1"},
		dataprovider.Record{"id": "2"},
		dataprovider.Record{"id": "3"},
	}, result.Data)
}

func TestProvider_BatchAllOrNothing(t *testing.T) {
	boom := errors.New("connection reset")
	transport := TransportFunc(func(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
		if strings.HasSuffix(url, "/2") {
			return nil, boom
		}
		return &Response{JSON: map[string]any{"id": 1}}, nil
	})

	p := newTestProvider(t, "legacy", transport)

	result, err := p.DeleteMany(context.Background(), "posts", dataprovider.DeleteManyParams{IDs: []any{1, 2, 3}})
	assert.Nil(t, result)
	assert.Same(t, boom, err)

	result, err = p.UpdateMany(context.Background(), "posts", dataprovider.UpdateManyParams{
		IDs:  []any{1, 2, 3},
		Data: dataprovider.Record{"title": "x"},
	})
	assert.Nil(t, result)
	assert.Same(t, boom, err)
}

func TestProvider_UpdateManySanitizesBody(t *testing.T) {
	transport := &mockTransport{}
	for _, id := range []string{"1", "2"} {
		transport.On("Request", mock.Anything, "http://h/api/posts/"+id, mock.MatchedBy(func(opts RequestOptions) bool {
			return opts.Method == http.MethodPut && string(opts.Body) == `{"data":{"title":"x"}}`
		})).Return(&Response{JSON: map[string]any{"data": map[string]any{"id": float64(1), "attributes": map[string]any{}}}}, nil).Once()
	}

	p := newTestProvider(t, "modern", transport)
	result, err := p.UpdateMany(context.Background(), "posts", dataprovider.UpdateManyParams{
		IDs:  []any{1, 2},
		Data: dataprovider.Record{"title": "x", "updated_at": "now", "createdAt": "then"},
	})
	require.NoError(t, err)

	assert.Len(t, result.Data, 2)
	transport.AssertExpectations(t)
}

func TestProvider_NativeGetMany(t *testing.T) {
	transport := &mockTransport{}
	transport.On("Request", mock.Anything,
		"http://h/api/posts?filters[id][$in][0]=3&filters[id][$in][1]=1&pagination[limit]=2&populate=*",
		RequestOptions{},
	).Return(&Response{JSON: decodeJSON(t, []byte(`{"data": [
		{"id": 1, "attributes": {"title": "one"}},
		{"id": 3, "attributes": {"title": "three"}}
	]}`))}, nil)

	p := newTestProvider(t, "modern", transport, func(c *Config) { c.NativeGetMany = true })
	result, err := p.GetMany(context.Background(), "posts", dataprovider.GetManyParams{IDs: []any{3, 1}})
	require.NoError(t, err)

	records, err := result.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "three", records[0]["title"])
	assert.Equal(t, "one", records[1]["title"])
}

func TestProvider_CreateAndDelete(t *testing.T) {
	transport := &mockTransport{}
	transport.On("Request", mock.Anything, "http://h/posts", RequestOptions{
		Method: http.MethodPost,
		Body:   []byte(`{"title":"x"}`),
	}).Return(&Response{JSON: map[string]any{"id": float64(9), "title": "x", "slug": "x"}}, nil)
	transport.On("Request", mock.Anything, "http://h/posts/9", RequestOptions{Method: http.MethodDelete}).
		Return(&Response{JSON: map[string]any{"id": float64(9)}}, nil)

	p := newTestProvider(t, "legacy", transport, func(c *Config) { c.BaseURL = "http://h" })

	created, err := p.Create(context.Background(), "posts", dataprovider.CreateParams{
		Data: dataprovider.Record{"title": "x", "created_at": "now"},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(9), created.Data.(dataprovider.Record)["id"])
	assert.Equal(t, "x", created.Data.(dataprovider.Record)["title"])
	assert.NotContains(t, created.Data.(dataprovider.Record), "slug")

	deleted, err := p.Delete(context.Background(), "posts", dataprovider.DeleteParams{ID: 9})
	require.NoError(t, err)
	assert.Equal(t, dataprovider.Record{"id": nil}, deleted.Data)

	transport.AssertExpectations(t)
}

func TestProvider_UploadPrecedence(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": {"id": 4, "attributes": {"title": "x", "images": {"data": [
			{"id": 3, "attributes": {"mime": "image/png", "url": "/3.png"}},
			{"id": 11, "attributes": {"mime": "image/png", "url": "/11.png"}}
		]}}}}`)
	}))
	defer server.Close()

	p, err := NewProvider(&Config{BaseURL: server.URL + "/api", Logger: hclog.NewNullLogger()})
	require.NoError(t, err)

	result, err := p.UpdateMany(context.Background(), "posts", dataprovider.UpdateManyParams{
		IDs: []any{4, 5},
		Data: dataprovider.Record{
			"title":      "x",
			"updated_at": "now",
			"images": []any{
				dataprovider.NewFile(dataprovider.NewRawFile("n.png", "image/png", []byte("png"))),
				dataprovider.ExistingFile(3),
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/api/posts/4", gotPath)

	parts := readMultipart(t, gotBody, gotContentType)
	require.Len(t, parts, 2)
	assert.Equal(t, "files.images", parts[0].name)
	assert.JSONEq(t, `{"title": "x", "images": [3]}`, parts[1].content)

	data := result.Data.([]any)
	require.Len(t, data, 1)
	images := data[0].(dataprovider.Record)["images"].([]any)
	require.Len(t, images, 2)
	assert.Equal(t, server.URL+"/11.png", images[1].(map[string]any)["url"])
}

func TestProvider_CreateWithUploadKeepsSubmittedFields(t *testing.T) {
	transport := &mockTransport{}
	transport.On("Request", mock.Anything, "http://h/api/posts?populate=*", mock.MatchedBy(func(opts RequestOptions) bool {
		return opts.Method == http.MethodPost && strings.HasPrefix(opts.ContentType, "multipart/form-data")
	})).Return(jsonResponse(t, `{"data": {"id": 9, "attributes": {
		"title": "SERVER",
		"slug": "s",
		"cover": {"data": {"id": 21, "attributes": {"mime": "image/png", "url": "/uploads/c.png"}}}
	}}}`), nil)

	p := newTestProvider(t, "modern", transport)

	result, err := p.Create(context.Background(), "posts", dataprovider.CreateParams{
		Data: dataprovider.Record{
			"title": "x",
			"cover": dataprovider.NewFile(dataprovider.NewRawFile("c.png", "image/png", []byte("png"))),
		},
	})
	require.NoError(t, err)

	rec := result.Data.(dataprovider.Record)
	assert.Equal(t, float64(9), rec["id"])
	assert.Equal(t, "x", rec["title"])
	assert.NotContains(t, rec, "slug")

	cover, ok := rec["cover"].(map[string]any)
	require.True(t, ok, "cover is %T", rec["cover"])
	assert.Equal(t, float64(21), cover["id"])
	assert.Equal(t, "http://h/uploads/c.png", cover["url"])
	transport.AssertExpectations(t)
}

func TestNewProvider_LeavesConfigUntouched(t *testing.T) {
	cfg := &Config{BaseURL: "http://h/api", MediaFields: []string{"cover"}}

	first, err := NewProvider(cfg)
	require.NoError(t, err)

	assert.Empty(t, cfg.Dialect)
	assert.Zero(t, cfg.Timeout)
	assert.Nil(t, cfg.TLSVerify)
	assert.NotSame(t, cfg, first.config)

	cfg.Dialect = "legacy"
	cfg.MediaFields[0] = "avatar"
	second, err := NewProvider(cfg)
	require.NoError(t, err)

	assert.Equal(t, "modern", first.Dialect().Name)
	assert.Equal(t, []string{"cover"}, first.config.MediaFields)
	assert.Equal(t, "legacy", second.Dialect().Name)
}

func TestProvider_DispatchUnsupported(t *testing.T) {
	transport := &mockTransport{}
	p := newTestProvider(t, "modern", transport)

	_, err := p.Dispatch(context.Background(), dataprovider.OperationType("PATCH_ALL"), "posts", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, dataprovider.ErrUnsupportedOperation)
	assert.Contains(t, err.Error(), "PATCH_ALL")
	transport.AssertNotCalled(t, "Request", mock.Anything, mock.Anything, mock.Anything)
}

func TestProvider_DispatchDecodesParams(t *testing.T) {
	transport := &mockTransport{}
	transport.On("Request", mock.Anything, "http://h/api/posts/7?populate=*", RequestOptions{
		Method: http.MethodPut,
		Body:   []byte(`{"data":{"title":"y"}}`),
	}).Return(&Response{JSON: map[string]any{"data": map[string]any{"id": float64(7), "attributes": map[string]any{"title": "y"}}}}, nil)

	p := newTestProvider(t, "modern", transport)

	raw := decodeJSON(t, []byte(`{"id": 7, "data": {"title": "y", "updatedAt": "now"}}`))
	result, err := p.Dispatch(context.Background(), dataprovider.Update, "posts", raw)
	require.NoError(t, err)

	assert.Equal(t, dataprovider.Record{"id": float64(7), "title": "y"}, result.Data)
	transport.AssertExpectations(t)
}

func TestProvider_TransportErrorUnchanged(t *testing.T) {
	boom := errors.New("dial tcp: refused")
	transport := &mockTransport{}
	transport.On("Request", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)

	p := newTestProvider(t, "legacy", transport)
	_, err := p.GetOne(context.Background(), "posts", dataprovider.GetOneParams{ID: 1})

	assert.Same(t, boom, err)
}
