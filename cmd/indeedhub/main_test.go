package main

import (
	"testing"

	"github.com/jimezsa/indeedhub/internal/cmd"
)

func TestBuildVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		commit  string
		date    string
		want    string
	}{
		{name: "plain", version: "1.0.0", want: "1.0.0"},
		{name: "commit only", version: "1.0.0", commit: "abc123", want: "1.0.0 (abc123)"},
		{name: "date only", version: "1.0.0", date: "2026-01-02", want: "1.0.0 (2026-01-02)"},
		{name: "both", version: "1.0.0", commit: "abc123", date: "2026-01-02", want: "1.0.0 (abc123, 2026-01-02)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prevVersion, prevCommit, prevDate := version, commit, date
			t.Cleanup(func() { version, commit, date = prevVersion, prevCommit, prevDate })
			version, commit, date = tt.version, tt.commit, tt.date

			if got := buildVersion(); got != tt.want {
				t.Fatalf("buildVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyEnvDefaults(t *testing.T) {
	t.Setenv("INDEEDHUB_JSON", "yes")
	t.Setenv("INDEEDHUB_VERBOSE", "0")
	t.Setenv("INDEEDHUB_COLOR", "never")

	cli := cmd.NewCLI()
	applyEnvDefaults(cli)
	if !cli.JSON || cli.Verbose || cli.Color != "never" {
		t.Fatalf("unexpected cli defaults: json=%v verbose=%v color=%q", cli.JSON, cli.Verbose, cli.Color)
	}
}
