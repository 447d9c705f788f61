package script

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/secret"
)

func testAgent() config.AgentConfig {
	return config.AgentConfig{
		Name:            "a1",
		Host:            "10.0.0.1",
		SSHPort:         22,
		SSHUser:         "root",
		InstallLocation: "/opt/multi-restic",
		Scheduler:       "cron",
		BackupRoot:      "/srv",
		ToBackup:        []string{"www", "db"},
		Repositories: config.Repositories{
			{Name: "r1", Endpoint: "/mnt/backup/r1"},
			{Name: "r2", Endpoint: "s3:host/bucket", ForgetArguments: "--keep-daily 7"},
		},
	}
}

func fixedClock(ts string) func() time.Time {
	return func() time.Time {
		t, _ := time.Parse(time.RFC3339, ts)
		return t
	}
}

func TestScriptBlocksInOrderWithRetentionOnlyWhereSet(t *testing.T) {
	g := &Generator{Now: fixedClock("2026-01-02T03:04:05Z")}
	out, err := g.Script(testAgent())
	if err != nil {
		t.Fatalf("Script: %v", err)
	}

	r1Start := strings.Index(out, "# START r1\n")
	r1End := strings.Index(out, "# END r1\n")
	r2Start := strings.Index(out, "# START r2\n")
	r2End := strings.Index(out, "# END r2\n")
	if r1Start < 0 || r1End < r1Start || r2Start < r1End || r2End < r2Start {
		t.Fatalf("blocks missing or out of order:\n%s", out)
	}

	r1 := out[r1Start:r1End]
	r2 := out[r2Start:r2End]
	if strings.Contains(r1, "restic forget") {
		t.Errorf("r1 block should have no retention step:\n%s", r1)
	}
	wantR2 := "restic backup www db\nrestic forget --keep-daily 7 --prune\n"
	if !strings.Contains(r2, wantR2) {
		t.Errorf("r2 block should have retention right after backup:\n%s", r2)
	}
	if strings.Count(out, "restic forget") != 1 {
		t.Errorf("expected exactly one retention line:\n%s", out)
	}
}

func TestScriptLayout(t *testing.T) {
	agent := testAgent()
	agent.PreCommand = []string{"systemctl stop app", "dump-db"}
	agent.PostCommand = []string{"systemctl start app"}

	g := &Generator{Now: fixedClock("2026-01-02T03:04:05Z")}
	out, err := g.Script(agent)
	if err != nil {
		t.Fatalf("Script: %v", err)
	}

	wantPrefix := "#!/bin/bash -e\n" +
		"# Generated on 2026-01-02T03:04:05Z by multi-restic\n" +
		"\n" +
		"export PATH=/opt/multi-restic:$PATH\n" +
		"cd /srv\n" +
		"\n" +
		"# Pre-backup commands\n" +
		"systemctl stop app && dump-db\n" +
		"\n" +
		"# START r1\n" +
		"source /opt/multi-restic/.env.r1\n" +
		"\n" +
		"if ! restic cat config >/dev/null 2>&1; then\n"
	if !strings.HasPrefix(out, wantPrefix) {
		t.Errorf("unexpected script prefix:\n%s", out)
	}
	if !strings.HasSuffix(out, "# END r2\n\n# Post-backup commands\nsystemctl start app\n") {
		t.Errorf("unexpected script suffix:\n%s", out)
	}
	if !strings.Contains(out, "    restic init\nfi\n") {
		t.Errorf("missing guarded init:\n%s", out)
	}
}

func TestScriptDeterministicExceptTimestamp(t *testing.T) {
	agent := testAgent()
	a, err := (&Generator{Now: fixedClock("2026-01-01T00:00:00Z")}).Script(agent)
	if err != nil {
		t.Fatal(err)
	}
	b, err := (&Generator{Now: fixedClock("2027-06-30T12:00:00Z")}).Script(agent)
	if err != nil {
		t.Fatal(err)
	}

	stripDate := func(s string) string {
		lines := strings.Split(s, "\n")
		lines[1] = ""
		return strings.Join(lines, "\n")
	}
	if a == b {
		t.Error("timestamps should differ")
	}
	if stripDate(a) != stripDate(b) {
		t.Errorf("scripts differ beyond the timestamp:\n%s\n---\n%s", a, b)
	}

	c, _ := (&Generator{Now: fixedClock("2026-01-01T00:00:00Z")}).Script(agent)
	if a != c {
		t.Error("same config and clock must produce identical output")
	}
}

func TestScriptEmptyPreAndPostCommands(t *testing.T) {
	out, err := (&Generator{}).Script(testAgent())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "# Pre-backup commands\n\n\n# START r1") {
		t.Errorf("empty pre-commands should render an empty line:\n%s", out)
	}
	if !strings.HasSuffix(out, "# Post-backup commands\n\n") {
		t.Errorf("empty post-commands should render an empty line:\n%s", out)
	}
}

func TestScriptNeverContainsSecrets(t *testing.T) {
	agent := testAgent()
	agent.Repositories[0].EnvVars = []string{"plain:RESTIC_PASSWORD=topsecret", "env:B2_KEY"}
	g := &Generator{Secrets: secret.Map{"B2_KEY": "alsosecret"}}

	art, err := g.Generate(agent)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, s := range []string{"topsecret", "alsosecret", "RESTIC_REPOSITORY"} {
		if strings.Contains(art.Script, s) {
			t.Errorf("script must not contain %q", s)
		}
	}
}

func TestEnvFiles(t *testing.T) {
	agent := testAgent()
	agent.Repositories[0].EnvVars = []string{
		"plain:A=B",
		"env:SRC",
		"env:SRC:DST",
		"plain:URL=http://x:1/y",
	}
	g := &Generator{Secrets: secret.Map{"SRC": "resolved"}}

	files, err := g.EnvFiles(agent)
	if err != nil {
		t.Fatalf("EnvFiles: %v", err)
	}
	if len(files) != 2 || files[0].Repository != "r1" || files[1].Repository != "r2" {
		t.Fatalf("unexpected files: %+v", files)
	}

	want := "# Environment variables for repository r1\n" +
		"export RESTIC_REPOSITORY=/mnt/backup/r1\n" +
		"export A=B\n" +
		"export SRC=resolved\n" +
		"export DST=resolved\n" +
		"export URL=http://x:1/y\n"
	if files[0].Content != want {
		t.Errorf("r1 env file:\n%s\nwant:\n%s", files[0].Content, want)
	}
	if files[1].Content != "# Environment variables for repository r2\nexport RESTIC_REPOSITORY=s3:host/bucket\n" {
		t.Errorf("r2 env file:\n%s", files[1].Content)
	}
}

func TestEnvFilesUnresolvedSecret(t *testing.T) {
	agent := testAgent()
	agent.Repositories[1].EnvVars = []string{"env:AWS_SECRET_ACCESS_KEY"}
	g := &Generator{Secrets: secret.Map{}}

	_, err := g.EnvFiles(agent)
	var se *SecretError
	if !errors.As(err, &se) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if se.Agent != "a1" || se.Repository != "r2" || se.Key != "AWS_SECRET_ACCESS_KEY" {
		t.Errorf("unexpected error fields: %+v", se)
	}
}

func TestEnvFilesNilSecretsFailsForEnvDirective(t *testing.T) {
	agent := testAgent()
	agent.Repositories[0].EnvVars = []string{"env:X"}
	if _, err := (&Generator{}).EnvFiles(agent); err == nil {
		t.Fatal("expected error without a secret source")
	}
}

func TestPaths(t *testing.T) {
	if got := ScriptPath("/opt/mr"); got != "/opt/mr/backup.sh" {
		t.Errorf("ScriptPath = %q", got)
	}
	if got := EnvFilePath("/opt/mr", "s3"); got != "/opt/mr/.env.s3" {
		t.Errorf("EnvFilePath = %q", got)
	}
}
