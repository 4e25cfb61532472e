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

// Command hid-proxy runs the keyboard proxy daemon and its management
// subcommands.
package main

import (
	"os"

	"github.com/paulcager/hid-proxy/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
