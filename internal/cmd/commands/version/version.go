package version

import (
	"github.com/nazirov91/ra-strapi-rest/internal/cmd/base"
	"github.com/nazirov91/ra-strapi-rest/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version"
}

func (c *Command) Help() string {
	return `Usage: ra-strapi version

  This command prints the version of the ra-strapi CLI.`
}

func (c *Command) Run(args []string) int {
	c.UI.Output(version.Version)
	return 0
}
