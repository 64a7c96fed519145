package strapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/nazirov91/ra-strapi-rest/pkg/dataprovider"
)

// Provider implements dataprovider.DataProvider against a Strapi REST API.
//
// Each call is routed in priority order: records holding new files go
// through the multipart upload path, bulk operations the dialect cannot
// express fall back to parallel single-record requests, and everything else
// becomes one request built by the query encoder and normalized by the
// response normalizer.
type Provider struct {
	config     *Config
	dialect    Dialect
	transport  Transport
	normalizer *Normalizer
	logger     hclog.Logger
}

// Compile-time checks
var (
	_ dataprovider.DataProvider = (*Provider)(nil)
	_ dataprovider.Dispatcher   = (*Provider)(nil)
)

// NewProvider creates a new Strapi data provider
func NewProvider(config *Config) (*Provider, error) {
	// Defaults are applied to a copy so the caller's config is left alone.
	c := *config
	c.MediaFields = append([]string(nil), config.MediaFields...)
	cfg := &c

	// Apply defaults
	defaults := DefaultConfig()
	if cfg.TLSVerify == nil {
		cfg.TLSVerify = defaults.TLSVerify
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Dialect == "" {
		cfg.Dialect = defaults.Dialect
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid strapi provider config: %w", err)
	}

	dialect, err := DialectByName(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	dialect.CountPath = strings.Trim(cfg.CountPath, "/")
	dialect.NativeGetMany = cfg.NativeGetMany

	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("strapi")

	transport := cfg.Transport
	if transport == nil {
		transport = NewHTTPTransport(cfg.NewHTTPClient(), cfg.OnAuthError, logger.Named("http"))
	}

	return &Provider{
		config:     cfg,
		dialect:    dialect,
		transport:  transport,
		normalizer: NewNormalizer(dialect, cfg.BaseURL, cfg.MediaFields),
		logger:     logger,
	}, nil
}

// Dialect returns the dialect the provider speaks.
func (p *Provider) Dialect() Dialect {
	return p.dialect
}

// ===================================================================
// DISPATCH
// ===================================================================

// Dispatch routes an operation with loosely typed params (for example
// decoded JSON) to the matching typed method. Unknown operation types fail
// with *dataprovider.UnsupportedOperationError before any request is made.
func (p *Provider) Dispatch(ctx context.Context, op dataprovider.OperationType, resource string, params any) (*dataprovider.Result, error) {
	typed, err := dataprovider.DecodeParams(op, params)
	if err != nil {
		return nil, err
	}

	ctx, _ = p.requestLogger(ctx, op, resource)

	switch op {
	case dataprovider.GetList:
		return p.GetList(ctx, resource, typed.(dataprovider.ListParams))
	case dataprovider.GetOne:
		return p.GetOne(ctx, resource, typed.(dataprovider.GetOneParams))
	case dataprovider.GetMany:
		return p.GetMany(ctx, resource, typed.(dataprovider.GetManyParams))
	case dataprovider.GetManyReference:
		return p.GetManyReference(ctx, resource, typed.(dataprovider.ListParams))
	case dataprovider.Create:
		return p.Create(ctx, resource, typed.(dataprovider.CreateParams))
	case dataprovider.Update:
		return p.Update(ctx, resource, typed.(dataprovider.UpdateParams))
	case dataprovider.UpdateMany:
		return p.UpdateMany(ctx, resource, typed.(dataprovider.UpdateManyParams))
	case dataprovider.Delete:
		return p.Delete(ctx, resource, typed.(dataprovider.DeleteParams))
	case dataprovider.DeleteMany:
		return p.DeleteMany(ctx, resource, typed.(dataprovider.DeleteManyParams))
	default:
		return nil, &dataprovider.UnsupportedOperationError{Op: op}
	}
}

// ===================================================================
// READ OPERATIONS
// ===================================================================

// GetList implements dataprovider.DataProvider.
func (p *Provider) GetList(ctx context.Context, resource string, params dataprovider.ListParams) (*dataprovider.Result, error) {
	return p.list(ctx, dataprovider.GetList, resource, params)
}

// GetManyReference implements dataprovider.DataProvider.
func (p *Provider) GetManyReference(ctx context.Context, resource string, params dataprovider.ListParams) (*dataprovider.Result, error) {
	return p.list(ctx, dataprovider.GetManyReference, resource, params)
}

func (p *Provider) list(ctx context.Context, op dataprovider.OperationType, resource string, params dataprovider.ListParams) (*dataprovider.Result, error) {
	ctx, logger := p.requestLogger(ctx, op, resource)

	if err := params.Validate(); err != nil {
		return nil, dataprovider.InvalidParams(op, err)
	}

	target := p.withPopulate(p.resourceURL(resource) + "?" + EncodeQuery(p.dialect, params))

	if p.dialect.CountPath == "" || !p.dialect.hasTotalSource(TotalFromCount) {
		logger.Debug("fetching list", "url", target)
		resp, err := p.transport.Request(ctx, target, RequestOptions{})
		if err != nil {
			return nil, err
		}
		return p.normalizer.Normalize(op, resource, resp, nil, params)
	}

	countURL := p.resourceURL(resource) + "/" + p.dialect.CountPath
	if filter := EncodeFilter(p.dialect, params); filter != "" {
		countURL += "?" + filter
	}
	logger.Debug("fetching list with count", "url", target, "count_url", countURL)

	urls := []string{target, countURL}
	responses, err := fanOut(len(urls), func(i int) (*Response, error) {
		return p.transport.Request(ctx, urls[i], RequestOptions{})
	})
	if err != nil {
		return nil, err
	}
	return p.normalizer.Normalize(op, resource, responses[0], responses[1], params)
}

// GetOne implements dataprovider.DataProvider.
func (p *Provider) GetOne(ctx context.Context, resource string, params dataprovider.GetOneParams) (*dataprovider.Result, error) {
	ctx, _ = p.requestLogger(ctx, dataprovider.GetOne, resource)

	if dataprovider.IsEmptyID(params.ID) {
		return nil, dataprovider.InvalidParams(dataprovider.GetOne, fmt.Errorf("id is required"))
	}

	resp, err := p.transport.Request(ctx, p.withPopulate(p.recordURL(resource, params.ID)), RequestOptions{})
	if err != nil {
		return nil, err
	}
	return p.normalizer.Normalize(dataprovider.GetOne, resource, resp, nil, params)
}

// GetMany implements dataprovider.DataProvider. Absent references are
// skipped. With native lookups enabled the records are fetched with one "in"
// filter request; otherwise one request is issued per id.
func (p *Provider) GetMany(ctx context.Context, resource string, params dataprovider.GetManyParams) (*dataprovider.Result, error) {
	ctx, logger := p.requestLogger(ctx, dataprovider.GetMany, resource)

	ids, err := refKeys(params.IDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &dataprovider.Result{Data: []any{}}, nil
	}

	if !p.dialect.NativeGetMany {
		return p.batch(ctx, dataprovider.GetMany, resource, ids, http.MethodGet, nil)
	}

	target := p.withPopulate(p.resourceURL(resource) + "?" + encodeInFilter(p.dialect, ids))
	logger.Debug("fetching records by id", "url", target, "count", len(ids))

	resp, err := p.transport.Request(ctx, target, RequestOptions{})
	if err != nil {
		return nil, err
	}
	result, err := p.normalizer.Normalize(dataprovider.GetMany, resource, resp, nil, params)
	if err != nil {
		return nil, err
	}
	return inIDOrder(result, ids)
}

// inIDOrder reorders the records of a native batch lookup to follow ids.
// Ids the backend did not return are left out.
func inIDOrder(result *dataprovider.Result, ids []any) (*dataprovider.Result, error) {
	records, err := result.Records()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]dataprovider.Record, len(records))
	for _, r := range records {
		if id, ok := r.ID(); ok {
			byID[stringify(id)] = r
		}
	}

	data := make([]any, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[stringify(id)]; ok {
			data = append(data, r)
		}
	}
	return &dataprovider.Result{Data: data}, nil
}

// ===================================================================
// WRITE OPERATIONS
// ===================================================================

// Create implements dataprovider.DataProvider.
func (p *Provider) Create(ctx context.Context, resource string, params dataprovider.CreateParams) (*dataprovider.Result, error) {
	ctx, _ = p.requestLogger(ctx, dataprovider.Create, resource)

	if fields := UploadFieldNames(params.Data); len(fields) > 0 {
		return p.upload(ctx, dataprovider.Create, resource, nil, params.Data, fields)
	}

	body, err := p.encodeBody(Sanitize(params.Data))
	if err != nil {
		return nil, err
	}
	resp, err := p.transport.Request(ctx, p.withPopulate(p.resourceURL(resource)), RequestOptions{
		Method: http.MethodPost,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	return p.normalizer.Normalize(dataprovider.Create, resource, resp, nil, params)
}

// Update implements dataprovider.DataProvider.
func (p *Provider) Update(ctx context.Context, resource string, params dataprovider.UpdateParams) (*dataprovider.Result, error) {
	ctx, _ = p.requestLogger(ctx, dataprovider.Update, resource)

	if dataprovider.IsEmptyID(params.ID) {
		return nil, dataprovider.InvalidParams(dataprovider.Update, fmt.Errorf("id is required"))
	}

	if fields := UploadFieldNames(params.Data); len(fields) > 0 {
		return p.upload(ctx, dataprovider.Update, resource, params.ID, params.Data, fields)
	}

	body, err := p.encodeBody(Sanitize(params.Data))
	if err != nil {
		return nil, err
	}
	resp, err := p.transport.Request(ctx, p.withPopulate(p.recordURL(resource, params.ID)), RequestOptions{
		Method: http.MethodPut,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	return p.normalizer.Normalize(dataprovider.Update, resource, resp, nil, params)
}

// UpdateMany implements dataprovider.DataProvider with one PUT per id.
//
// Uploads are not batched: when the data holds new files, only the first id
// is updated (through the upload path) and the result holds that one record.
// The skipped ids are logged as a warning.
func (p *Provider) UpdateMany(ctx context.Context, resource string, params dataprovider.UpdateManyParams) (*dataprovider.Result, error) {
	ctx, logger := p.requestLogger(ctx, dataprovider.UpdateMany, resource)

	ids, err := refKeys(params.IDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &dataprovider.Result{Data: []any{}}, nil
	}

	if fields := UploadFieldNames(params.Data); len(fields) > 0 {
		if len(ids) > 1 {
			logger.Warn("file uploads are not batched, updating the first record only",
				"updated", ids[0],
				"skipped", ids[1:])
		}
		result, err := p.upload(ctx, dataprovider.Update, resource, ids[0], params.Data, fields)
		if err != nil {
			return nil, err
		}
		return &dataprovider.Result{Data: []any{result.Data}}, nil
	}

	return p.batch(ctx, dataprovider.UpdateMany, resource, ids, http.MethodPut, Sanitize(params.Data))
}

// Delete implements dataprovider.DataProvider. The result is always
// {id: nil}.
func (p *Provider) Delete(ctx context.Context, resource string, params dataprovider.DeleteParams) (*dataprovider.Result, error) {
	ctx, _ = p.requestLogger(ctx, dataprovider.Delete, resource)

	if dataprovider.IsEmptyID(params.ID) {
		return nil, dataprovider.InvalidParams(dataprovider.Delete, fmt.Errorf("id is required"))
	}

	resp, err := p.transport.Request(ctx, p.recordURL(resource, params.ID), RequestOptions{
		Method: http.MethodDelete,
	})
	if err != nil {
		return nil, err
	}
	return p.normalizer.Normalize(dataprovider.Delete, resource, resp, nil, params)
}

// DeleteMany implements dataprovider.DataProvider with one DELETE per id.
func (p *Provider) DeleteMany(ctx context.Context, resource string, params dataprovider.DeleteManyParams) (*dataprovider.Result, error) {
	ctx, _ = p.requestLogger(ctx, dataprovider.DeleteMany, resource)

	ids, err := refKeys(params.IDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &dataprovider.Result{Data: []any{}}, nil
	}
	return p.batch(ctx, dataprovider.DeleteMany, resource, ids, http.MethodDelete, nil)
}

// ===================================================================
// HELPERS
// ===================================================================

func (p *Provider) resourceURL(resource string) string {
	return strings.TrimRight(p.config.BaseURL, "/") + "/" + strings.Trim(resource, "/")
}

// recordURL addresses one record; singletons have no id segment.
func (p *Provider) recordURL(resource string, id any) string {
	if dataprovider.IsSingleType(id) || dataprovider.IsEmptyID(id) {
		return p.resourceURL(resource)
	}
	return p.resourceURL(resource) + "/" + url.PathEscape(stringify(id))
}

// withPopulate appends the dialect's populate parameter, if any.
func (p *Provider) withPopulate(target string) string {
	if p.dialect.Populate == "" {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + "populate=" + p.dialect.Populate
}

// encodeBody serializes a write body, wrapped as {"data": record} when the
// dialect expects it.
func (p *Provider) encodeBody(r dataprovider.Record) ([]byte, error) {
	var body any = map[string]any(r)
	if r == nil {
		body = map[string]any{}
	}
	if p.dialect.WrapBody {
		body = map[string]any{"data": body}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return b, nil
}

type loggerKey struct{}

// requestLogger returns the request-scoped logger of ctx, creating one with
// a fresh request id when ctx has none.
func (p *Provider) requestLogger(ctx context.Context, op dataprovider.OperationType, resource string) (context.Context, hclog.Logger) {
	if l, ok := ctx.Value(loggerKey{}).(hclog.Logger); ok {
		return ctx, l
	}
	l := p.logger.With(
		"request_id", uuid.NewString(),
		"operation", op.String(),
		"resource", resource,
	)
	l.Trace("request started")
	return context.WithValue(ctx, loggerKey{}, l), l
}

func loggerFrom(ctx context.Context, fallback hclog.Logger) hclog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(hclog.Logger); ok {
		return l
	}
	return fallback
}
