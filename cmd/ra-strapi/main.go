package main

import (
	"os"

	"github.com/nazirov91/ra-strapi-rest/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
