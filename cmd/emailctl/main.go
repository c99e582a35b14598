// Command emailctl manages the email store from the terminal: schema
// migration, sample data, listing with filters, updates, reply drafts and stats.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
