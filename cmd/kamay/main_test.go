package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMainExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{name: "help lists practice commands", args: []string{"--help"}, wantOut: "practice"},
		{name: "version", args: []string{"version"}, wantOut: "kamay"},
		{name: "status without session", args: []string{"status"}, wantOut: "idle"},
		{name: "stop without session", args: []string{"stop"}, wantCode: 1, wantOut: "no active kamay session"},
		{name: "unknown command", args: []string{"not-a-command"}, wantCode: 2, wantOut: "unknown command"},
		{name: "practice needs input", args: []string{"practice"}, wantCode: 2, wantOut: "needs TEXT or --lesson"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			output, code := runMain(t, tc.args...)
			require.Equal(t, tc.wantCode, code, string(output))
			require.Contains(t, string(output), tc.wantOut)
		})
	}
}

func TestMainHelperProcess(t *testing.T) {
	if os.Getenv("KAMAY_MAIN_HELPER") != "1" {
		return
	}

	args := os.Args
	os.Args = []string{"kamay"}
	if i := slices.Index(args, "--"); i >= 0 {
		os.Args = append(os.Args, args[i+1:]...)
	}
	main()
}

// runMain re-executes the test binary as kamay inside throwaway XDG dirs.
func runMain(t *testing.T, args ...string) ([]byte, int) {
	t.Helper()

	root := t.TempDir()
	cmd := exec.Command(os.Args[0], append([]string{"-test.run=TestMainHelperProcess", "--"}, args...)...)
	cmd.Env = append(os.Environ(),
		"KAMAY_MAIN_HELPER=1",
		"XDG_CONFIG_HOME="+filepath.Join(root, "config"),
		"XDG_STATE_HOME="+filepath.Join(root, "state"),
		"XDG_RUNTIME_DIR="+root,
		"NO_COLOR=1",
	)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return output, 0
	}

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "unexpected error: %v", err)
	return output, exitErr.ExitCode()
}
