package dataprovider

import (
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordID(t *testing.T) {
	id, ok := Record{"id": 4}.ID()
	assert.True(t, ok)
	assert.Equal(t, 4, id)

	id, ok = Record{"_id": "abc"}.ID()
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = Record{"id": nil, "title": "x"}.ID()
	assert.False(t, ok)
}

func TestListParams_Validate(t *testing.T) {
	assert.NoError(t, ListParams{Pagination: Pagination{Page: 1, PerPage: 10}}.Validate())
	assert.Error(t, ListParams{Pagination: Pagination{Page: 0, PerPage: 10}}.Validate())
	assert.Error(t, ListParams{Pagination: Pagination{Page: 1, PerPage: 0}}.Validate())
	assert.Error(t, ListParams{Pagination: Pagination{Page: -2, PerPage: 10}}.Validate())
}

func TestResult_Records(t *testing.T) {
	r := &Result{Data: []any{Record{"id": 1}, map[string]any{"id": 2}}}
	recs, err := r.Records()
	require.NoError(t, err)
	assert.Equal(t, []Record{{"id": 1}, {"id": 2}}, recs)

	_, err = (&Result{Data: Record{"id": 1}}).Records()
	assert.Error(t, err)

	_, err = (&Result{Data: []any{"x"}}).Records()
	assert.Error(t, err)
}

func TestIDHelpers(t *testing.T) {
	assert.True(t, IsSingleType("SingleType"))
	assert.False(t, IsSingleType("singletype"))
	assert.False(t, IsSingleType(1))

	assert.True(t, IsEmptyID(nil))
	assert.True(t, IsEmptyID(""))
	assert.False(t, IsEmptyID(0))
}

func TestNewRawFileFromFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/uploads/report.pdf", []byte("%PDF-1.4"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/uploads/notes", []byte("plain text"), 0o644))

	raw, err := NewRawFileFromFs(fs, "/uploads/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", raw.Name)
	assert.Equal(t, "application/pdf", raw.ContentType)
	content, err := io.ReadAll(raw.Content)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content))

	raw, err = NewRawFileFromFs(fs, "/uploads/notes")
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", raw.ContentType)

	_, err = NewRawFileFromFs(fs, "/uploads/missing.png")
	assert.ErrorContains(t, err, "failed to read upload file")

	f := NewFile(raw)
	assert.True(t, f.IsNew())
	assert.Equal(t, "notes", f.Title)
	assert.False(t, ExistingFile(3).IsNew())
}
