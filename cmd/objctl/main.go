// Command objctl writes, inspects and removes objects through the streaming
// object writer, and classifies backend error responses.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dray-io/objaccess/internal/objectstore"
)

// Set at build time via -ldflags.
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// exitTempFail is EX_TEMPFAIL from sysexits.h: the failure is retryable.
const exitTempFail = 75

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "objctl: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var oerr *objectstore.Error
	if errors.As(err, &oerr) && oerr.Retryable {
		return exitTempFail
	}
	return 1
}
