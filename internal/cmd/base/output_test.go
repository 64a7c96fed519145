package base

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazirov91/ra-strapi-rest/pkg/dataprovider"
)

func TestRender(t *testing.T) {
	total := 2
	result := &dataprovider.Result{
		Data:  []any{dataprovider.Record{"id": 1}, dataprovider.Record{"id": 2}},
		Total: &total,
	}

	out, err := Render(FormatJSON, result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": [{"id": 1}, {"id": 2}], "total": 2}`, out)

	out, err = Render("YAML", result)
	require.NoError(t, err)
	assert.Equal(t, "data:\n    - id: 1\n    - id: 2\ntotal: 2", out)

	_, err = Render("xml", result)
	assert.Error(t, err)
}

func TestFlagSetHelp(t *testing.T) {
	var config string
	var verbose bool
	f := NewFlagSet(flag.NewFlagSet("test", flag.ContinueOnError))
	f.StringVar(&config, "config", "strapi.hcl", "Path to the configuration file.")
	f.BoolVar(&verbose, "verbose", false, "Print more.")

	help := f.Help()

	assert.Contains(t, help, "Options:")
	assert.Contains(t, help, "-config=strapi.hcl")
	assert.Contains(t, help, "Path to the configuration file.")
	assert.Contains(t, help, "-verbose\n")
}
