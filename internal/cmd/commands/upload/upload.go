package upload

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/nazirov91/ra-strapi-rest/internal/cmd/base"
	"github.com/nazirov91/ra-strapi-rest/pkg/dataprovider"
)

type Command struct {
	*base.Command

	flagConfig string
	flagField  string
	flagID     string
	flagData   string
	flagFormat string
}

func (c *Command) Synopsis() string {
	return "Create or update a record with file attachments"
}

func (c *Command) Help() string {
	return `Usage: ra-strapi upload [options] <resource> <file>...

  This command uploads local files into a file field of a record. Without
  -id a new record is created; with -id the record is updated. Use the id
  "SingleType" for single-type resources.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("upload", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", os.Getenv("RA_STRAPI_CONFIG"),
		"[RA_STRAPI_CONFIG] Path to the configuration file.",
	)
	f.StringVar(
		&c.flagField, "field", "",
		"(Required) Name of the file field.",
	)
	f.StringVar(
		&c.flagID, "id", "",
		"Id of the record to update. A new record is created when empty.",
	)
	f.StringVar(
		&c.flagData, "data", "",
		"Other record fields as a JSON object.",
	)
	f.StringVar(
		&c.flagFormat, "format", base.FormatJSON,
		"Output format: json or yaml.",
	)

	return f
}

func (c *Command) Run(args []string) int {
	logger, ui := c.Log, c.UI

	f := c.Flags()
	if err := f.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	args = f.Args()
	if len(args) < 2 {
		ui.Error("resource and at least one file are required")
		return 1
	}
	if c.flagField == "" {
		ui.Error("field flag is required")
		return 1
	}
	resource, paths := args[0], args[1:]

	record, err := c.buildRecord(paths)
	if err != nil {
		ui.Error(err.Error())
		return 1
	}

	cfg, err := c.LoadConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing config: %v", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	provider, _, err := c.NewProvider(ctx, cfg)
	if err != nil {
		ui.Error(fmt.Sprintf("error initializing data provider: %v", err))
		return 1
	}

	logger.Debug("uploading files", "resource", resource, "field", c.flagField, "files", len(paths))

	var result *dataprovider.Result
	if c.flagID == "" {
		result, err = provider.Create(ctx, resource, dataprovider.CreateParams{Data: record})
	} else {
		result, err = provider.Update(ctx, resource, dataprovider.UpdateParams{ID: c.flagID, Data: record})
	}
	if err != nil {
		ui.Error(fmt.Sprintf("error uploading to %s: %v", resource, err))
		return 1
	}

	if err := c.Output(c.flagFormat, result); err != nil {
		ui.Error(err.Error())
		return 1
	}
	return 0
}

// buildRecord reads the files and combines them with the -data fields.
func (c *Command) buildRecord(paths []string) (dataprovider.Record, error) {
	record := dataprovider.Record{}
	if c.flagData != "" {
		if err := json.Unmarshal([]byte(c.flagData), &record); err != nil {
			return nil, fmt.Errorf("data is not a valid JSON object: %w", err)
		}
	}

	files := make([]any, 0, len(paths))
	for _, path := range paths {
		raw, err := dataprovider.NewRawFileFromFs(c.Fs, path)
		if err != nil {
			return nil, err
		}
		files = append(files, dataprovider.NewFile(raw))
	}
	record[c.flagField] = files

	return record, nil
}
