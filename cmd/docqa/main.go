// Command docqa answers questions about an uploaded document. It provides a
// CLI (via Cobra) for one-shot questions and an HTTP server for interactive
// use.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/docqa-go/cmd/docqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
