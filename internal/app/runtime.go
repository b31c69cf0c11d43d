package app

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// TestModeEnv makes cmd/sage and cmd/worker exit before connecting to
// Postgres, Redis or opening a listener. Image smoke tests set it.
const TestModeEnv = "SAGE_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return parseTestMode(os.Getenv(TestModeEnv))
})

// parseTestMode accepts the strconv.ParseBool spellings; anything else is off.
func parseTestMode(v string) bool {
	on, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && on
}

// InTestMode reports whether SAGE_TEST_MODE was enabled when first consulted.
func InTestMode() bool {
	return testMode()
}
