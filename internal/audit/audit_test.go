package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestRedact(t *testing.T) {
	t.Parallel()

	cases := []struct {
		secret bool
		value  string
		want   string
	}{
		{true, "sk-abc123", "set"},
		{true, "", "unset"},
		{false, "ollama", "ollama"},
		{false, "", "unset"},
	}
	for _, tc := range cases {
		if got := redact(setting{key: "K", secret: tc.secret}, tc.value); got != tc.want {
			t.Errorf("redact(secret=%v, %q) = %q, want %q", tc.secret, tc.value, got, tc.want)
		}
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.docqa/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.docqa/config.yaml" {
			t.Errorf("expected '~/.docqa/config.yaml', got %q", got)
		}
	}
}

func TestComponents_KeysUnique(t *testing.T) {
	t.Parallel()

	seen := map[string]string{}
	for _, c := range components {
		for _, s := range c.settings {
			if prev, ok := seen[s.key]; ok {
				t.Errorf("%s listed under both %q and %q", s.key, prev, c.name)
			}
			seen[s.key] = c.name
			if strings.Contains(s.key, "KEY") && !s.secret {
				t.Errorf("%s looks like a credential but is not marked secret", s.key)
			}
		}
	}
}

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("MINIO_SECRET_KEY", "super-secret-value")
	t.Setenv("INDEX_BACKEND", "qdrant")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(context.Background(), log, "serve", "")

	out := buf.String()
	if strings.Contains(out, "super-secret-value") {
		t.Fatalf("secret value leaked into audit log: %s", out)
	}

	var rec struct {
		Command    string            `json:"command"`
		ConfigFile string            `json:"config_file"`
		Index      map[string]string `json:"index"`
		Archive    map[string]string `json:"archive"`
	}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.Command != "serve" || rec.ConfigFile != "none" {
		t.Errorf("unexpected header fields: %+v", rec)
	}
	if rec.Archive["MINIO_SECRET_KEY"] != "set" {
		t.Errorf("expected MINIO_SECRET_KEY=set, got %q", rec.Archive["MINIO_SECRET_KEY"])
	}
	if rec.Index["INDEX_BACKEND"] != "qdrant" {
		t.Errorf("expected INDEX_BACKEND=qdrant, got %q", rec.Index["INDEX_BACKEND"])
	}
}
