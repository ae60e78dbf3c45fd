// Command fetchly sends HTTP requests from the command line through the
// fetchly client and prints the classified outcome.
package main

import (
	"os"

	"github.com/kroma-labs/fetchly-go/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
