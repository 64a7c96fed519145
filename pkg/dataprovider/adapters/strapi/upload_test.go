package strapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazirov91/ra-strapi-rest/pkg/dataprovider"
)

type uploadedPart struct {
	name        string
	filename    string
	contentType string
	content     string
}

// readMultipart decodes an encoded upload body into its parts.
func readMultipart(t *testing.T, body []byte, contentType string) []uploadedPart {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	r := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	var parts []uploadedPart
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, uploadedPart{
			name:        p.FormName(),
			filename:    p.FileName(),
			contentType: p.Header.Get("Content-Type"),
			content:     string(content),
		})
	}
	return parts
}

func TestUploadFieldNames(t *testing.T) {
	raw := dataprovider.NewRawFile("a.png", "image/png", []byte("png"))

	record := dataprovider.Record{
		"title":    "x",
		"cover":    dataprovider.NewFile(raw),
		"gallery":  []any{dataprovider.ExistingFile(3), map[string]any{"rawFile": raw, "title": "b"}},
		"existing": []any{dataprovider.ExistingFile(4)},
		"nested":   map[string]any{"deep": []any{map[string]any{"file": raw}}},
		"plain":    []any{1, 2},
	}

	assert.Equal(t, []string{"cover", "gallery", "nested"}, UploadFieldNames(record))
	assert.Empty(t, UploadFieldNames(dataprovider.Record{"cover": dataprovider.ExistingFile(1)}))
	assert.Empty(t, UploadFieldNames(nil))
}

func TestBuildMultipart_MixedNewAndExisting(t *testing.T) {
	record := dataprovider.Record{
		"title": "x",
		"images": []any{
			dataprovider.NewFile(dataprovider.NewRawFile("new.png", "image/png", []byte("binary"))),
			dataprovider.ExistingFile(3),
		},
	}

	body, err := buildMultipart(record, UploadFieldNames(record))
	require.NoError(t, err)
	assert.Equal(t, 1, body.Files)

	parts := readMultipart(t, body.Body, body.ContentType)
	require.Len(t, parts, 2)

	assert.Equal(t, "files.images", parts[0].name)
	assert.Equal(t, "new.png", parts[0].filename)
	assert.Equal(t, "image/png", parts[0].contentType)
	assert.Equal(t, "binary", parts[0].content)

	assert.Equal(t, "data", parts[1].name)
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(parts[1].content), &data))
	assert.Equal(t, map[string]any{"title": "x", "images": []any{float64(3)}}, data)

	// the caller's record keeps its file values
	assert.Len(t, record["images"], 2)
}

func TestBuildMultipart_SingleFileField(t *testing.T) {
	record := dataprovider.Record{
		"avatar": dataprovider.NewRawFile("me.jpg", "", []byte("jpg")),
	}

	body, err := buildMultipart(record, UploadFieldNames(record))
	require.NoError(t, err)

	parts := readMultipart(t, body.Body, body.ContentType)
	require.Len(t, parts, 2)
	assert.Equal(t, "files.avatar", parts[0].name)
	assert.Equal(t, "application/octet-stream", parts[0].contentType)
	assert.JSONEq(t, `{"avatar": []}`, parts[1].content)
}

func TestBuildMultipart_ExistingWithoutID(t *testing.T) {
	record := dataprovider.Record{
		"images": []any{
			dataprovider.NewRawFile("a.png", "image/png", nil),
			map[string]any{"title": "no id"},
		},
	}

	_, err := buildMultipart(record, UploadFieldNames(record))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestRefKey(t *testing.T) {
	tests := []struct {
		name string
		ref  any
		key  any
		ok   bool
	}{
		{name: "bare number", ref: 5, key: 5, ok: true},
		{name: "bare string", ref: "abc", key: "abc", ok: true},
		{name: "nil", ref: nil, ok: false},
		{name: "empty string", ref: "", ok: false},
		{name: "record", ref: map[string]any{"id": 7, "title": "x"}, key: 7, ok: true},
		{name: "document id", ref: dataprovider.Record{"_id": "6f1"}, key: "6f1", ok: true},
		{name: "envelope", ref: map[string]any{"data": map[string]any{"id": 2}}, key: 2, ok: true},
		{name: "empty envelope", ref: map[string]any{"data": nil}, ok: false},
		{name: "file", ref: dataprovider.ExistingFile(9), key: 9, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok, err := RefKey(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, key)
		})
	}

	_, _, err := RefKey(map[string]any{"title": "no id"})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
