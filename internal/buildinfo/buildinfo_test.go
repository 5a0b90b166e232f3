package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGet(t *testing.T) {
	Set("1.2.3", "abc123", "2025-01-01", "ci")

	assert.Equal(t, Info{Version: "1.2.3", Commit: "abc123", Date: "2025-01-01", BuiltBy: "ci"}, Get())
	assert.Equal(t, "1.2.3", Version())
}

func TestEnrichOverwritesPlaceholders(t *testing.T) {
	Set("dev", "none", "unknown", "unknown")
	Enrich()

	// the toolchain version is always recorded
	assert.NotEqual(t, "unknown", Get().BuiltBy)
}

func TestEnrichPreservesExplicitValues(t *testing.T) {
	Set("v1.0.0", "deadbeef", "2025-06-01", "goreleaser")
	Enrich()

	assert.Equal(t, "deadbeef", Get().Commit)
	assert.Equal(t, "goreleaser", Get().BuiltBy)
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "v0.3.0", Commit: "0123456789abcdef", Date: "2025-06-01", BuiltBy: "go1.25.0"}
	assert.Equal(t, "v0.3.0 (commit 0123456789ab, built 2025-06-01 by go1.25.0)", info.String())
}
