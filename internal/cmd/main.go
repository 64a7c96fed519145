package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/nazirov91/ra-strapi-rest/internal/version"
)

const appName = "ra-strapi"

// Main runs the CLI with the given arguments and returns the exit code.
func Main(args []string) int {
	log := hclog.New(&hclog.LoggerOptions{
		Name:   appName,
		Level:  hclog.Info,
		Output: os.Stderr,
	})

	if len(args) == 2 && (args[1] == "-version" || args[1] == "-v") {
		args = []string{args[0], "version"}
	}

	ui := &cli.BasicUi{
		Reader:      bufio.NewReader(os.Stdin),
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	c := &cli.CLI{
		Name:     appName,
		Args:     args[1:],
		Version:  version.Version,
		Commands: Commands(log, ui),
		HelpFunc: helpFunc,
	}

	exitCode, err := c.Run()
	if err != nil {
		ui.Error(fmt.Sprintf("error running %s: %v", appName, err))
		return 1
	}

	return exitCode
}

// helpFunc prefixes the generated command list with a short description of
// the tool.
func helpFunc(commands map[string]cli.CommandFactory) string {
	return fmt.Sprintf("%s runs react-admin data provider operations against a Strapi REST API.\n\n%s",
		appName, cli.BasicHelpFunc(appName)(commands))
}
