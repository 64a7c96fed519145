package base

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"

	"github.com/nazirov91/ra-strapi-rest/internal/config"
	"github.com/nazirov91/ra-strapi-rest/pkg/auth"
	"github.com/nazirov91/ra-strapi-rest/pkg/dataprovider/adapters/strapi"
)

// Command is embedded by every CLI command and carries the shared
// dependencies.
type Command struct {
	Log hclog.Logger
	UI  cli.Ui
	Fs  afero.Fs
}

// NewCommand returns a Command using the OS filesystem.
func NewCommand(log hclog.Logger, ui cli.Ui) *Command {
	return &Command{
		Log: log,
		UI:  ui,
		Fs:  afero.NewOsFs(),
	}
}

// FlagSet wraps a flag.FlagSet with help rendering.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet wraps f.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	return &FlagSet{FlagSet: f}
}

// Help renders the flags for a command's help text.
func (f *FlagSet) Help() string {
	var buf bytes.Buffer
	buf.WriteString("\n\nOptions:\n")
	f.VisitAll(func(fl *flag.Flag) {
		fmt.Fprintf(&buf, "\n  -%s", fl.Name)
		if fl.DefValue != "" && fl.DefValue != "false" {
			fmt.Fprintf(&buf, "=%s", fl.DefValue)
		}
		fmt.Fprintf(&buf, "\n      %s\n", fl.Usage)
	})
	return strings.TrimRight(buf.String(), "\n")
}

// LoadConfig parses the configuration file at path and applies its log
// level to the command's logger.
func (c *Command) LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.NewConfig(path)
	if err != nil {
		return nil, err
	}
	c.Log.SetLevel(cfg.Level())
	return cfg, nil
}

// NewProvider builds a data provider from cfg. When cfg has an auth block
// the provider authenticates with a session: a configured token is used as
// is, otherwise the session logs in with the configured credentials.
func (c *Command) NewProvider(ctx context.Context, cfg *config.Config) (*strapi.Provider, *auth.Session, error) {
	sc, err := cfg.StrapiConfig(c.Log)
	if err != nil {
		return nil, nil, err
	}

	var session *auth.Session
	if cfg.Auth != nil {
		session, err = auth.NewSession(auth.Config{
			BaseURL: sc.BaseURL,
			Logger:  c.Log,
		})
		if err != nil {
			return nil, nil, err
		}

		if cfg.Auth.Token != "" {
			session.SetToken(cfg.Auth.Token, "")
		} else if err := session.Login(ctx, auth.Credentials{
			Identifier: cfg.Auth.Identifier,
			Password:   cfg.Auth.Password,
		}); err != nil {
			return nil, nil, err
		}

		sc.TokenSource = session
		sc.OnAuthError = session.OnAuthError
	}

	p, err := strapi.NewProvider(sc)
	if err != nil {
		return nil, nil, err
	}
	return p, session, nil
}
