package cmd

import (
	"os"
	"testing"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"docchat"}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func TestExecuteVersion(t *testing.T) {
	withArgs(t, "version")
	if err := Execute(); err != nil {
		t.Errorf("Execute(version) = %v", err)
	}
}

func TestExecuteHelp(t *testing.T) {
	withArgs(t, "help")
	if err := Execute(); err != nil {
		t.Errorf("Execute(help) = %v", err)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	withArgs(t, "frobnicate")
	if err := Execute(); err == nil {
		t.Error("Execute with unknown command must fail")
	}
}

func TestCheckRequiredEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	if err := checkRequiredEnv(); err == nil {
		t.Error("missing GEMINI_API_KEY must fail")
	}

	t.Setenv("GEMINI_API_KEY", "key")
	if err := checkRequiredEnv(); err != nil {
		t.Errorf("checkRequiredEnv = %v", err)
	}
}
