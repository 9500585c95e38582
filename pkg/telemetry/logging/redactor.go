package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redactor scrubs credential material from log output. The gateway holds
// one API key per upstream provider, so a single leaked log line can burn
// a real quota; redaction is always on.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in credential pattern names.
const (
	PatternBearerToken = "bearer_token"
	PatternProviderKey = "provider_key"
	PatternKeyValue    = "key_value"
)

// NewRedactor creates a Redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	r := &Redactor{}

	for _, p := range []struct {
		name        string
		regex       string
		replacement string
	}{
		// Authorization header values
		{
			name:        PatternBearerToken,
			regex:       `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`,
			replacement: "Bearer ***",
		},

		// Prefixed provider keys (sk-..., gsk_..., pk-...)
		{
			name:        PatternProviderKey,
			regex:       `\b((?:sk|gsk|pk|rk)[-_])[a-zA-Z0-9_\-]{8,}`,
			replacement: "$1***",
		},

		// key=value shapes in free-form text
		{
			name:        PatternKeyValue,
			regex:       `(?i)(api[-_]?key|token|secret|credential|password)[:=]\s*[^\s"]+`,
			replacement: "$1=***",
		},
	} {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}

	return r
}

// RedactString redacts credential-shaped substrings from a string value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}

	redacted := value
	for _, pattern := range r.patterns {
		redacted = pattern.regex.ReplaceAllString(redacted, pattern.replacement)
	}

	return redacted
}

// isSensitiveKey reports whether an attribute key names a secret. Keys are
// matched per segment so "prompt_tokens" passes while "api_token" does not.
func (r *Redactor) isSensitiveKey(key string) bool {
	for _, segment := range strings.FieldsFunc(strings.ToLower(key), func(c rune) bool {
		return c == '_' || c == '-' || c == '.'
	}) {
		switch segment {
		case "key", "apikey", "token", "secret", "password", "credential", "credentials", "authorization":
			return true
		}
	}
	return false
}

// redactValue redacts a sensitive value completely, keeping a short prefix
// of string values so leaked keys can be matched to a provider.
func redactValue(val slog.Value) string {
	if val.Kind() != slog.KindString {
		return "***"
	}
	s := val.String()
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "***"
	}
	return s[:4] + "***"
}

// RedactingHandler is a slog.Handler middleware that redacts credentials
// from records before the wrapped handler formats them.
type RedactingHandler struct {
	inner    slog.Handler
	redactor *Redactor
}

// NewRedactingHandler wraps a handler with credential redaction.
func NewRedactingHandler(inner slog.Handler) *RedactingHandler {
	return &RedactingHandler{
		inner:    inner,
		redactor: NewRedactor(),
	}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler. The record is rebuilt with redacted
// message and attributes; the original record is never passed through.
func (h *RedactingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, h.redactor.RedactString(rec.Message), rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(h.redactAttr(attr))
		return true
	})
	return h.inner.Handle(ctx, out)
}

// WithAttrs implements slog.Handler. Attributes bound via Logger.With pass
// through here, so pre-bound credentials are redacted as well.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		redacted[i] = h.redactAttr(attr)
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(redacted), redactor: h.redactor}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name), redactor: h.redactor}
}

func (h *RedactingHandler) redactAttr(attr slog.Attr) slog.Attr {
	val := attr.Value.Resolve()

	if val.Kind() == slog.KindGroup {
		members := val.Group()
		redacted := make([]slog.Attr, len(members))
		for i, member := range members {
			redacted[i] = h.redactAttr(member)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(redacted...)}
	}

	if h.redactor.isSensitiveKey(attr.Key) {
		return slog.String(attr.Key, redactValue(val))
	}

	if val.Kind() == slog.KindString {
		return slog.String(attr.Key, h.redactor.RedactString(val.String()))
	}

	return attr
}
