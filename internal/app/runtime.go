package app

import (
	"os"
	"strconv"
	"sync"
)

const testModeEnv = "HOTELOPS_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	on, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	return on
})

// InTestMode reports whether binaries should exit before touching Postgres or
// Redis. The flag is read once per process.
func InTestMode() bool {
	return testMode()
}
