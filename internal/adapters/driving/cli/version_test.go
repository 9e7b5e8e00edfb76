package cli

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withVersion(t *testing.T, v string) {
	t.Helper()
	original := version
	version = v
	t.Cleanup(func() { version = original })
}

func TestVersionCmd(t *testing.T) {
	tests := []struct {
		name    string
		version string
		args    []string
		want    string
	}{
		{
			name:    "full line includes runtime",
			version: "1.2.0",
			args:    []string{"version"},
			want:    "enricher version 1.2.0 (" + runtime.Version(),
		},
		{
			name:    "dev build",
			version: "dev",
			args:    []string{"version"},
			want:    "enricher version dev",
		},
		{
			name:    "short prints bare version",
			version: "1.2.0",
			args:    []string{"version", "--short"},
			want:    "1.2.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupCLITest(t)
			withVersion(t, tt.version)

			out, err := executeCommand(tt.args...)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(out, tt.want), "got %q", out)
		})
	}
}

func TestVersionCmd_RejectsArgs(t *testing.T) {
	setupCLITest(t)

	_, err := executeCommand("version", "extra")
	assert.Error(t, err)
}

func TestVersionCmd_SkipsBootstrap(t *testing.T) {
	setupCLITest(t)
	called := false
	bootstrap = func(Options) (*Services, error) {
		called = true
		return &Services{}, nil
	}

	_, err := executeCommand("version", "--short")
	require.NoError(t, err)
	assert.False(t, called)
}
