package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/nazirov91/ra-strapi-rest/internal/cmd/base"
	"github.com/nazirov91/ra-strapi-rest/internal/cmd/commands/login"
	"github.com/nazirov91/ra-strapi-rest/internal/cmd/commands/request"
	"github.com/nazirov91/ra-strapi-rest/internal/cmd/commands/upload"
	"github.com/nazirov91/ra-strapi-rest/internal/cmd/commands/version"
)

// Commands returns the command factories of the CLI.
func Commands(log hclog.Logger, ui cli.Ui) map[string]cli.CommandFactory {
	b := base.NewCommand(log, ui)

	return map[string]cli.CommandFactory{
		"login": func() (cli.Command, error) {
			return &login.Command{Command: b}, nil
		},
		"request": func() (cli.Command, error) {
			return &request.Command{Command: b}, nil
		},
		"upload": func() (cli.Command, error) {
			return &upload.Command{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
