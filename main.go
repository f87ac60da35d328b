// chatloom - a terminal chat client for a locally hosted LLM.
//
// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/kmorrow/chatloom/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
