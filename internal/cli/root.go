// Copyright (c) 2025 Paul Cager
//
// This file is part of hid-proxy.
//
// hid-proxy is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@paulcager.org for commercial licensing options.

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hid-proxy",
	Short: "hid-proxy - keyboard passthrough with macro playback and sealed storage",
	Long: `hid-proxy sits between a USB keyboard and the host it is plugged into,
forwarding keystrokes unchanged until a magic chord switches it into
command mode. From there macros can be recorded, played back, sealed
behind a password, imported and exported as text.

The daemon reads reports from a hidraw device node and writes them to
USB gadget function nodes, so the host sees an ordinary keyboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is /etc/hid-proxy/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(macrosCmd)
	rootCmd.AddCommand(wipeCmd)
}

// handleError prints an error and exits with code 1
func handleError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
