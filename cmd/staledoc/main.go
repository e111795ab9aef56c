// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command staledoc reports Python functions whose docstrings no longer
// document their parameters.
//
// Usage:
//
//	staledoc [flags] [paths...]        check files and directories
//	staledoc check --diff change.diff  check functions touched by a diff
//	staledoc serve                     HTTP endpoint for editors
//	staledoc watch [paths...]          re-check files as they are saved
//	staledoc version
//
// Exit status is 0 when every checked function is compliant, 1 when a
// violation or per-file failure was found, and 2 on usage or
// configuration errors.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
