// Package audit logs one structured record per CLI invocation describing the
// effective configuration of each docqa component. Secrets are reduced to
// "set" or "unset"; their values never reach the log.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// setting is one environment variable reported in the audit record.
type setting struct {
	key    string
	secret bool
}

// component groups the settings of one subsystem under a log group.
type component struct {
	name     string
	settings []setting
}

// components is the ordered audit layout. Secret keys must be marked here.
var components = []component{
	{"model", []setting{
		{"MODEL_PROVIDER", false},
		{"OLLAMA_HOST", false},
		{"OLLAMA_MODEL", false},
		{"OPENAI_MODEL", false},
		{"OPENAI_API_KEY", true},
		{"AZURE_OPENAI_ENDPOINT", false},
		{"AZURE_OPENAI_DEPLOYMENT", false},
		{"AZURE_OPENAI_API_KEY", true},
		{"ARK_MODEL", false},
		{"ARK_API_KEY", true},
		{"GEMINI_MODEL", false},
		{"GOOGLE_API_KEY", true},
	}},
	{"embedding", []setting{
		{"EMBEDDING_PROVIDER", false},
		{"EMBEDDING_MODEL", false},
		{"EMBEDDING_DIMENSIONS", false},
		{"EMBEDDING_API_KEY", true},
	}},
	{"retrieval", []setting{
		{"DOCQA_CHUNK_SIZE", false},
		{"DOCQA_TOP_K", false},
		{"DOCQA_MAX_UPLOAD_BYTES", false},
	}},
	{"index", []setting{
		{"INDEX_BACKEND", false},
		{"QDRANT_HOST", false},
		{"QDRANT_COLLECTION", false},
		{"QDRANT_API_KEY", true},
	}},
	{"archive", []setting{
		{"ARCHIVE_BACKEND", false},
		{"ARCHIVE_DIR", false},
		{"MINIO_ENDPOINT", false},
		{"MINIO_BUCKET", false},
		{"MINIO_ACCESS_KEY", true},
		{"MINIO_SECRET_KEY", true},
	}},
	{"server", []setting{
		{"DOCQA_HOST", false},
		{"DOCQA_PORT", false},
		{"DOCQA_API_KEY", true},
		{"DOCQA_HISTORY_DB", false},
	}},
	{"observability", []setting{
		{"LOG_LEVEL", false},
		{"LOG_FORMAT", false},
		{"LANGFUSE_PUBLIC_KEY", true},
		{"LANGFUSE_SECRET_KEY", true},
	}},
}

// LogCommandStart emits the audit record for command. configPath is the YAML
// file that was applied, or "" when none was found.
func LogCommandStart(ctx context.Context, log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(components)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, c := range components {
		group := make([]any, 0, len(c.settings))
		for _, s := range c.settings {
			group = append(group, slog.String(s.key, redact(s, os.Getenv(s.key))))
		}
		attrs = append(attrs, slog.Group(c.name, group...))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// redact renders value for the audit log.
func redact(s setting, value string) string {
	switch {
	case value == "":
		return "unset"
	case s.secret:
		return "set"
	default:
		return value
	}
}

// sanitiseConfigPath returns "none" for an empty path and replaces the home
// directory prefix with "~".
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
