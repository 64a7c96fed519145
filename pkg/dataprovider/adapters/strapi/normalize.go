package strapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nazirov91/ra-strapi-rest/pkg/dataprovider"
)

// apiPathSuffix is stripped from the base URL to build absolute media URLs:
// the API is served under /api, uploads under the server root.
const apiPathSuffix = "/api"

// Normalizer converts raw backend responses into dataprovider results for
// one dialect.
type Normalizer struct {
	dialect     Dialect
	assetBase   string
	mediaFields map[string]struct{}
}

// NewNormalizer creates a normalizer. baseURL is the API root the provider
// talks to; mediaFields names relation fields that always hold media.
func NewNormalizer(d Dialect, baseURL string, mediaFields []string) *Normalizer {
	fields := make(map[string]struct{}, len(mediaFields))
	for _, f := range mediaFields {
		fields[f] = struct{}{}
	}
	base := strings.TrimRight(baseURL, "/")
	return &Normalizer{
		dialect:     d,
		assetBase:   strings.TrimSuffix(base, apiPathSuffix),
		mediaFields: fields,
	}
}

// AssetURL resolves a media URL from a response against the server root.
// Absolute URLs are returned unchanged.
func (n *Normalizer) AssetURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") ||
		strings.HasPrefix(u, "//") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return n.assetBase + u
}

// Normalize converts the response of a single request. List operations
// require a total signal; pass a companion count response, when one was
// requested, through count. params must be the params of op (the submitted
// data of a create is taken from them).
func (n *Normalizer) Normalize(op dataprovider.OperationType, resource string, resp, count *Response, params any) (*dataprovider.Result, error) {
	switch {
	case op.IsList():
		return n.list(op, resource, resp, count)
	case op == dataprovider.GetMany:
		return n.many(resp)
	case op == dataprovider.Create:
		p, _ := params.(dataprovider.CreateParams)
		return n.created(resp, p.Data)
	case op == dataprovider.Delete:
		return &dataprovider.Result{Data: dataprovider.Record{"id": nil}}, nil
	default:
		rec, err := n.Record(resp)
		if err != nil {
			return nil, err
		}
		return &dataprovider.Result{Data: rec}, nil
	}
}

// Record normalizes a response holding one record. Responses without a JSON
// object body yield a nil record.
func (n *Normalizer) Record(resp *Response) (dataprovider.Record, error) {
	item, err := n.processItem(n.payload(resp))
	if err != nil {
		return nil, err
	}
	return toRecord(item), nil
}

// ===================================================================
// LIST TOTALS
// ===================================================================

func (n *Normalizer) list(op dataprovider.OperationType, resource string, resp, count *Response) (*dataprovider.Result, error) {
	total, ok := n.total(resp, count)
	if !ok {
		return nil, &MissingCountError{
			Operation: op,
			Resource:  resource,
			Dialect:   n.dialect.Name,
			Sources:   n.dialect.TotalSources,
		}
	}

	data, err := n.items(resp)
	if err != nil {
		return nil, err
	}
	return &dataprovider.Result{Data: data, Total: &total}, nil
}

// total reads the total count from the dialect's sources, in priority order.
func (n *Normalizer) total(resp, count *Response) (int, bool) {
	for _, src := range n.dialect.TotalSources {
		switch src {
		case TotalFromHeader:
			if resp != nil && resp.Headers != nil {
				if t, ok := parseContentRange(resp.Headers.Get("Content-Range")); ok {
					return t, true
				}
			}
		case TotalFromMeta:
			if resp != nil {
				if t, ok := metaTotal(resp.JSON); ok {
					return t, true
				}
			}
		case TotalFromCount:
			if count != nil {
				if t, ok := countTotal(count.JSON); ok {
					return t, true
				}
			}
		}
	}
	return 0, false
}

// parseContentRange reads the total after the last "/" of a header such as
// "posts 0-24/157".
func parseContentRange(header string) (int, bool) {
	if header == "" {
		return 0, false
	}
	i := strings.LastIndex(header, "/")
	if i < 0 {
		return 0, false
	}
	return toInt(strings.TrimSpace(header[i+1:]))
}

func metaTotal(body any) (int, bool) {
	m, ok := asMap(body)
	if !ok {
		return 0, false
	}
	meta, ok := asMap(m["meta"])
	if !ok {
		return 0, false
	}
	pagination, ok := asMap(meta["pagination"])
	if !ok {
		return 0, false
	}
	return toInt(pagination["total"])
}

// countTotal accepts a bare number or {"count": n}.
func countTotal(body any) (int, bool) {
	if m, ok := asMap(body); ok {
		return toInt(m["count"])
	}
	return toInt(body)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

// ===================================================================
// RECORDS
// ===================================================================

// payload returns the part of the body that holds the record(s).
func (n *Normalizer) payload(resp *Response) any {
	if resp == nil {
		return nil
	}
	if !n.dialect.AttributeRecords {
		return resp.JSON
	}
	if m, ok := asMap(resp.JSON); ok {
		if data, ok := m["data"]; ok {
			return data
		}
	}
	return resp.JSON
}

func (n *Normalizer) items(resp *Response) ([]any, error) {
	payload := n.payload(resp)
	if payload == nil {
		return []any{}, nil
	}
	list, ok := asSlice(payload)
	if !ok {
		return nil, &MalformedPayloadError{Reason: fmt.Sprintf("list data is %T, not an array", payload)}
	}
	out := make([]any, len(list))
	for i, item := range list {
		processed, err := n.processItem(item)
		if err != nil {
			return nil, err
		}
		out[i] = toRecord(processed)
	}
	return out, nil
}

func (n *Normalizer) many(resp *Response) (*dataprovider.Result, error) {
	data, err := n.items(resp)
	if err != nil {
		return nil, err
	}
	return &dataprovider.Result{Data: data}, nil
}

func (n *Normalizer) created(resp *Response, submitted dataprovider.Record) (*dataprovider.Result, error) {
	m, ok := asMap(n.payload(resp))
	if !ok {
		return nil, &MalformedPayloadError{Reason: "create response carries no record"}
	}
	id, ok := dataprovider.IDOf(m)
	if !ok {
		return nil, &MalformedPayloadError{Field: "id", Reason: "create response carries no id"}
	}

	out := make(dataprovider.Record, len(submitted)+1)
	for k, v := range submitted {
		out[k] = v
	}
	out["id"] = id
	return &dataprovider.Result{Data: out}, nil
}

// processItem flattens one record. Modern records {id, attributes} become
// {id, ...attributes} with relation envelopes resolved; legacy records are
// already flat and pass through.
func (n *Normalizer) processItem(item any) (any, error) {
	if !n.dialect.AttributeRecords {
		return item, nil
	}
	m, ok := asMap(item)
	if !ok {
		return item, nil
	}

	attrs, hasAttrs := asMap(m["attributes"])
	if !hasAttrs {
		return n.walkObject(m)
	}

	out := make(map[string]any, len(attrs)+1)
	if id, ok := m["id"]; ok {
		out["id"] = id
	}
	for k, v := range attrs {
		formatted, err := n.formatField(k, v)
		if err != nil {
			return nil, err
		}
		out[k] = formatted
	}
	return out, nil
}

// walkObject copies a plain object, resolving envelopes in its fields.
func (n *Normalizer) walkObject(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		formatted, err := n.formatField(k, v)
		if err != nil {
			return nil, err
		}
		out[k] = formatted
	}
	return out, nil
}

func (n *Normalizer) formatField(name string, v any) (any, error) {
	if m, ok := asMap(v); ok {
		if isEnvelope(m) {
			return n.formatRelation(name, m["data"])
		}
		// component
		return n.walkObject(m)
	}
	if list, ok := asSlice(v); ok {
		out := make([]any, len(list))
		for i, el := range list {
			if m, ok := asMap(el); ok {
				walked, err := n.walkObject(m)
				if err != nil {
					return nil, err
				}
				out[i] = walked
				continue
			}
			out[i] = el
		}
		return out, nil
	}
	return v, nil
}

// isEnvelope reports whether m is a relation envelope: a "data" key with at
// most a "meta" sibling.
func isEnvelope(m map[string]any) bool {
	if _, ok := m["data"]; !ok {
		return false
	}
	for k := range m {
		if k != "data" && k != "meta" {
			return false
		}
	}
	return true
}

func (n *Normalizer) formatRelation(name string, data any) (any, error) {
	if data == nil {
		return nil, nil
	}

	if list, ok := asSlice(data); ok {
		if len(list) == 0 {
			return []any{}, nil
		}
		media := n.isMedia(name, list)
		out := make([]any, len(list))
		for i, el := range list {
			var err error
			if media {
				out[i], err = n.processMedia(name, el)
			} else {
				out[i], err = relationID(name, el)
			}
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	if _, ok := asMap(data); ok {
		if n.isMedia(name, []any{data}) {
			return n.processMedia(name, data)
		}
		id, err := relationID(name, data)
		if err != nil {
			return nil, err
		}
		return stringify(id), nil
	}

	// bare id
	return data, nil
}

// isMedia classifies a relation: the field is a configured media field, or
// every related entry carries a mime marker.
func (n *Normalizer) isMedia(name string, entries []any) bool {
	if _, ok := n.mediaFields[name]; ok {
		return true
	}
	for _, el := range entries {
		m, ok := asMap(el)
		if !ok {
			return false
		}
		fields := m
		if attrs, ok := asMap(m["attributes"]); ok {
			fields = attrs
		}
		if mime, _ := fields["mime"].(string); mime == "" {
			return false
		}
	}
	return true
}

func (n *Normalizer) processMedia(name string, entry any) (any, error) {
	m, ok := asMap(entry)
	if !ok {
		return nil, &MalformedPayloadError{Field: name, Reason: fmt.Sprintf("media entry is %T, not an object", entry)}
	}
	if _, ok := dataprovider.IDOf(m); !ok {
		return nil, &MalformedPayloadError{Field: name, Reason: "media entry has no id"}
	}

	fields := m
	if attrs, ok := asMap(m["attributes"]); ok {
		fields = attrs
	}

	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	for _, k := range []string{"id", "_id"} {
		if id, ok := m[k]; ok {
			out[k] = id
		}
	}
	if u, ok := fields["url"].(string); ok {
		out["url"] = n.AssetURL(u)
	}
	return out, nil
}

func relationID(name string, entry any) (any, error) {
	m, ok := asMap(entry)
	if !ok {
		return entry, nil
	}
	id, ok := dataprovider.IDOf(m)
	if !ok {
		return nil, &MalformedPayloadError{Field: name, Reason: "relation has neither id nor _id"}
	}
	return id, nil
}

func toRecord(v any) dataprovider.Record {
	switch r := v.(type) {
	case dataprovider.Record:
		return r
	case map[string]any:
		return dataprovider.Record(r)
	}
	return nil
}
