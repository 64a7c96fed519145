package strapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"

	"github.com/nazirov91/ra-strapi-rest/pkg/dataprovider"
)

// rawFileKey is the map key that holds unsaved content in file values
// decoded from loosely typed input ({"rawFile": ..., "title": ...}).
const rawFileKey = "rawFile"

// UploadFieldNames returns the sorted top-level fields of r whose value holds
// a new file anywhere, at any nesting depth.
func UploadFieldNames(r dataprovider.Record) []string {
	var names []string
	for name, v := range r {
		if hasNewFile(v) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// hasNewFile reports whether v is, or contains, a file still to upload.
func hasNewFile(v any) bool {
	if findRawFile(v) != nil {
		return true
	}
	if m, ok := asMap(v); ok {
		for _, child := range m {
			if hasNewFile(child) {
				return true
			}
		}
		return false
	}
	if list, ok := asSlice(v); ok {
		for _, child := range list {
			if hasNewFile(child) {
				return true
			}
		}
	}
	return false
}

// findRawFile returns the unsaved content of a single file value, or nil
// when v is not a new file.
func findRawFile(v any) *dataprovider.RawFile {
	switch f := v.(type) {
	case *dataprovider.RawFile:
		return f
	case *dataprovider.File:
		if f.IsNew() {
			return f.Raw
		}
		return nil
	case dataprovider.File:
		return f.Raw
	}
	if m, ok := asMap(v); ok {
		if raw, ok := m[rawFileKey].(*dataprovider.RawFile); ok {
			return raw
		}
	}
	return nil
}

// existingFileID returns the id of an already persisted file value.
func existingFileID(v any) (any, bool) {
	switch f := v.(type) {
	case *dataprovider.File:
		if f == nil || dataprovider.IsEmptyID(f.ID) {
			return nil, false
		}
		return f.ID, true
	case dataprovider.File:
		if dataprovider.IsEmptyID(f.ID) {
			return nil, false
		}
		return f.ID, true
	}
	if m, ok := asMap(v); ok {
		return dataprovider.IDOf(m)
	}
	if dataprovider.IsEmptyID(v) {
		return nil, false
	}
	return v, true
}

// filePart is one binary part of an upload.
type filePart struct {
	field string
	file  *dataprovider.RawFile
}

// partitionFiles splits the value of an upload field into new content and
// the ids of existing files, keeping the original order within each group.
// Nested values are flattened: every new file found anywhere in v is
// uploaded under the top-level field name.
func partitionFiles(field string, v any) ([]filePart, []any, error) {
	values, ok := asSlice(v)
	if !ok {
		values = []any{v}
	}

	var parts []filePart
	existing := []any{}
	for _, entry := range values {
		if raw := findRawFile(entry); raw != nil {
			parts = append(parts, filePart{field: field, file: raw})
			continue
		}
		if hasNewFile(entry) {
			nested, ids, err := partitionFiles(field, flattenValues(entry))
			if err != nil {
				return nil, nil, err
			}
			parts = append(parts, nested...)
			existing = append(existing, ids...)
			continue
		}
		id, ok := existingFileID(entry)
		if !ok {
			return nil, nil, &MalformedPayloadError{Field: field, Reason: "existing file has no id"}
		}
		existing = append(existing, id)
	}
	return parts, existing, nil
}

// flattenValues returns the children of a map or slice as one slice.
func flattenValues(v any) []any {
	if list, ok := asSlice(v); ok {
		return list
	}
	m, _ := asMap(v)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		if hasNewFile(m[k]) {
			out = append(out, m[k])
		}
	}
	return out
}

// multipartBody is an encoded upload request body.
type multipartBody struct {
	Body        []byte
	ContentType string
	Files       int
}

// buildMultipart encodes one "files.<field>" part per new file, followed by
// the "data" part holding the JSON of the remaining fields with upload fields
// reduced to their existing ids.
func buildMultipart(data dataprovider.Record, uploadFields []string) (*multipartBody, error) {
	fields := make(dataprovider.Record, len(data))
	for k, v := range data {
		fields[k] = v
	}

	var parts []filePart
	for _, name := range uploadFields {
		newParts, existing, err := partitionFiles(name, data[name])
		if err != nil {
			return nil, err
		}
		parts = append(parts, newParts...)
		fields[name] = existing
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range parts {
		if err := writeFilePart(w, p); err != nil {
			return nil, err
		}
	}

	encoded, err := json.Marshal(map[string]any(fields))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal upload data: %w", err)
	}
	if err := w.WriteField("data", string(encoded)); err != nil {
		return nil, fmt.Errorf("failed to write upload data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	return &multipartBody{
		Body:        buf.Bytes(),
		ContentType: w.FormDataContentType(),
		Files:       len(parts),
	}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFilePart(w *multipart.Writer, p filePart) error {
	name := p.file.Name
	if name == "" {
		name = p.field
	}
	contentType := p.file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace("files."+p.field), quoteEscaper.Replace(name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if p.file.Content == nil {
		return nil
	}
	if _, err := io.Copy(part, p.file.Content); err != nil {
		return fmt.Errorf("failed to write file %q: %w", name, err)
	}
	return nil
}

// upload sends a record holding new files as a multipart create (POST) or
// update (PUT). An update returns the normalized server record. A create
// returns the submitted fields with the server id, and the file fields as the
// server stored them so the ids assigned to the new files are visible.
func (p *Provider) upload(ctx context.Context, op dataprovider.OperationType, resource string, id any, data dataprovider.Record, uploadFields []string) (*dataprovider.Result, error) {
	logger := loggerFrom(ctx, p.logger)

	body, err := buildMultipart(Sanitize(data), uploadFields)
	if err != nil {
		return nil, err
	}

	method := http.MethodPut
	target := p.recordURL(resource, id)
	if op == dataprovider.Create {
		method = http.MethodPost
		target = p.resourceURL(resource)
	}

	logger.Debug("uploading files",
		"operation", op,
		"resource", resource,
		"fields", uploadFields,
		"files", body.Files)

	resp, err := p.transport.Request(ctx, p.withPopulate(target), RequestOptions{
		Method:      method,
		Body:        body.Body,
		ContentType: body.ContentType,
	})
	if err != nil {
		return nil, err
	}

	rec, err := p.normalizer.Record(resp)
	if err != nil {
		return nil, err
	}
	if op != dataprovider.Create {
		return &dataprovider.Result{Data: rec}, nil
	}

	// A created record keeps the submitted fields; only the id and the
	// uploaded file fields come from the server.
	result, err := p.normalizer.created(resp, data)
	if err != nil {
		return nil, err
	}
	created := result.Data.(dataprovider.Record)
	for _, field := range uploadFields {
		if v, ok := rec[field]; ok {
			created[field] = v
		}
	}
	return result, nil
}
