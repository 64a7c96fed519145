package request

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/afero"

	"github.com/nazirov91/ra-strapi-rest/internal/cmd/base"
	"github.com/nazirov91/ra-strapi-rest/pkg/dataprovider"
)

type Command struct {
	*base.Command

	flagConfig     string
	flagParams     string
	flagParamsFile string
	flagFormat     string
}

func (c *Command) Synopsis() string {
	return "Run one data provider operation against the API"
}

func (c *Command) Help() string {
	return `Usage: ra-strapi request [options] <operation> <resource>

  This command runs one data provider operation (getList, getOne, getMany,
  getManyReference, create, update, updateMany, delete, deleteMany) and
  prints the normalized {data, total} result.

  Params are given as JSON, for example:

      ra-strapi request -config strapi.hcl \
        -params '{"pagination": {"page": 1, "perPage": 10}}' getList posts` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("request", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", os.Getenv("RA_STRAPI_CONFIG"),
		"[RA_STRAPI_CONFIG] Path to the configuration file.",
	)
	f.StringVar(
		&c.flagParams, "params", "",
		"Operation params as a JSON object.",
	)
	f.StringVar(
		&c.flagParamsFile, "params-file", "",
		"Path to a file holding the operation params as JSON.",
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
	if len(args) != 2 {
		ui.Error("operation and resource arguments are required")
		return 1
	}

	op, err := dataprovider.ParseOperation(args[0])
	if err != nil {
		ui.Error(err.Error())
		return 1
	}
	resource := args[1]

	params, err := c.readParams(op)
	if err != nil {
		ui.Error(fmt.Sprintf("error reading params: %v", err))
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

	logger.Debug("running operation", "operation", op, "resource", resource)

	result, err := provider.Dispatch(ctx, op, resource, params)
	if err != nil {
		ui.Error(fmt.Sprintf("error running %s on %s: %v", op, resource, err))
		return 1
	}

	if err := c.Output(c.flagFormat, result); err != nil {
		ui.Error(err.Error())
		return 1
	}
	return 0
}

// readParams decodes the JSON params from the flag or the params file into
// the params struct of op.
func (c *Command) readParams(op dataprovider.OperationType) (any, error) {
	raw := []byte(c.flagParams)
	if c.flagParamsFile != "" {
		if c.flagParams != "" {
			return nil, fmt.Errorf("only one of -params and -params-file may be set")
		}
		b, err := afero.ReadFile(c.Fs, c.flagParamsFile)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return dataprovider.DecodeParamsJSON(op, raw)
}
