package login

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nazirov91/ra-strapi-rest/internal/cmd/base"
	"github.com/nazirov91/ra-strapi-rest/pkg/auth"
)

type Command struct {
	*base.Command

	flagConfig     string
	flagIdentifier string
	flagPassword   string
	flagPrintToken bool
}

func (c *Command) Synopsis() string {
	return "Log in with local credentials and show the session"
}

func (c *Command) Help() string {
	return `Usage: ra-strapi login [options]

  This command logs in against the /auth/local endpoint and prints the role
  of the user. Credentials come from the auth block of the configuration
  file unless given as flags.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("login", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", os.Getenv("RA_STRAPI_CONFIG"),
		"[RA_STRAPI_CONFIG] Path to the configuration file.",
	)
	f.StringVar(
		&c.flagIdentifier, "identifier", "",
		"Username or email. Overrides auth.identifier.",
	)
	f.StringVar(
		&c.flagPassword, "password", "",
		"[STRAPI_PASSWORD] Password. Overrides auth.password.",
	)
	f.BoolVar(
		&c.flagPrintToken, "print-token", false,
		"Print the issued token.",
	)

	return f
}

func (c *Command) Run(args []string) int {
	ui := c.UI

	f := c.Flags()
	if err := f.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	cfg, err := c.LoadConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing config: %v", err))
		return 1
	}

	creds := auth.Credentials{
		Identifier: c.flagIdentifier,
		Password:   c.flagPassword,
	}
	if cfg.Auth != nil {
		if creds.Identifier == "" {
			creds.Identifier = cfg.Auth.Identifier
		}
		if creds.Password == "" {
			creds.Password = cfg.Auth.Password
		}
	}

	sc, err := cfg.StrapiConfig(c.Log)
	if err != nil {
		ui.Error(err.Error())
		return 1
	}
	session, err := auth.NewSession(auth.Config{
		BaseURL:    sc.BaseURL,
		HTTPClient: sc.NewHTTPClient(),
		Logger:     c.Log,
	})
	if err != nil {
		ui.Error(err.Error())
		return 1
	}

	if err := session.Login(context.Background(), creds); err != nil {
		ui.Error(fmt.Sprintf("error logging in: %v", err))
		return 1
	}

	role, err := session.Permissions()
	if err != nil {
		role = "(none)"
	}
	ui.Info(fmt.Sprintf("Logged in as %s with role %s", creds.Identifier, role))

	token, err := session.Token()
	if err != nil {
		ui.Error(err.Error())
		return 1
	}
	if !token.Expiry.IsZero() {
		ui.Info(fmt.Sprintf("Token expires at %s", token.Expiry.Format(time.RFC3339)))
	}
	if c.flagPrintToken {
		ui.Output(token.AccessToken)
	}
	return 0
}
