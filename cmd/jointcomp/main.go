// Command jointcomp builds the assembly and linker targets declared in a
// project's targets script and prints the resulting link directives.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/jointcomp/jointcomp/pkg/cli"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg := cli.NewConfig()
	cfg.Version = version

	if err := cli.NewCLI(cfg).ExecuteContext(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}
