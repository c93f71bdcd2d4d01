// Command eventctl is operator tooling around the reactor core: it runs the
// library's canonical scenarios as live demonstrations and can launch the
// topic bridge and metrics HTTP servers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "eventctl",
	Short: "Operator tooling for the reactor event-composition core",
	Long: `eventctl runs the reactor core's canonical scenarios as scripted
demonstrations and can launch its topic bridge and metrics servers.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "eventctl: %v\n", err)
		os.Exit(1)
	}
}
