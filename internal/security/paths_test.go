package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, ValidatePathWithinDirectory(filepath.Join(dir, "dashboard.json"), dir))
	assert.NoError(t, ValidatePathWithinDirectory(filepath.Join(dir, "new", "nested.json"), dir))
	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(dir, "..", "escape.json"), dir))
	assert.Error(t, ValidatePathWithinDirectory("/etc/passwd", dir))
}

func TestValidatePathWithinDirectory_SymlinkedParent(t *testing.T) {
	safe := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(safe, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(link, "config.json"), safe))
}

func TestValidateWritePath(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	assert.NoError(t, ValidateWritePath(filepath.Join(cwd, "out.json")))
	assert.NoError(t, ValidateWritePath(filepath.Join(os.TempDir(), "out.json")))
	assert.Error(t, ValidateWritePath("/proc/self/out.json"))
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"humidity-2024-01-01T09:00:00": "humidity-2024-01-01T09_00_00",
		"../../etc/passwd":             "etc_passwd",
		"a   b///c":                    "a_b_c",
		"":                             "unknown",
		"...":                          "unknown",
		"voltage.png":                  "voltage.png",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
	assert.LessOrEqual(t, len(SanitizeFilename(strings.Repeat("x", 500))), 128)
}
