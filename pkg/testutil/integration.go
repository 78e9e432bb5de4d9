package testutil

import (
	"os"
	"testing"
)

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireEnv returns the value of the environment variable key, skipping the
// test when it is not set. Integration tests use it for database DSNs.
func RequireEnv(t *testing.T, key string) string {
	t.Helper()
	IntegrationTest(t)

	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}
