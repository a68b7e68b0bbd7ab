// Package redaction scrubs credentials from text that leaves the
// process, chiefly tool output forwarded to the log stream. An AI CLI
// working inside a cloned repository can echo anything it encounters,
// including the token embedded in the clone URL.
package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Engine performs regex-based secret detection and redaction.
type Engine struct {
	patterns []*regexp.Regexp
}

// NewEngine creates a redaction engine with the default secret patterns.
func NewEngine() *Engine {
	return &Engine{patterns: defaultPatterns()}
}

// Redact replaces every detected secret in input with a stable
// placeholder. The same secret always yields the same placeholder, so
// repeated leaks remain correlatable without exposing the value.
func (e *Engine) Redact(input string) string {
	seen := make(map[string]string)
	for _, pattern := range e.patterns {
		for _, match := range pattern.FindAllString(input, -1) {
			if _, ok := seen[match]; ok {
				continue
			}
			seen[match] = placeholder(match)
		}
	}

	result := input
	for secret, replacement := range seen {
		result = strings.ReplaceAll(result, secret, replacement)
	}
	return result
}

// placeholder derives a short stable marker from the secret itself.
func placeholder(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("<REDACTED:%s>", hex.EncodeToString(hash[:])[:8])
}

// defaultPatterns covers the credentials a supervised tool is most
// likely to encounter: the GitHub token authenticating the clone, keys
// for the provider CLIs themselves, and the usual high-value formats.
func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// Token userinfo in clone URLs
		`x-access-token:[^@\s]+@`,
		// GitHub classic and app tokens
		`gh[opsur]_[a-zA-Z0-9]{20,}`,
		// GitHub fine-grained tokens
		`github_pat_[a-zA-Z0-9_]{20,}`,
		// Anthropic API keys
		`sk-ant-[a-zA-Z0-9\-]{20,}`,
		// OpenAI-style API keys
		`sk-[a-zA-Z0-9]{20,}`,
		// Google API keys
		`AIza[0-9A-Za-z\-_]{35}`,
		// AWS Access Key ID
		`AKIA[0-9A-Z]{16}`,
		// JWT tokens
		`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`,
		// Private keys (PEM format)
		`-----BEGIN\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----[\s\S]*?-----END\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----`,
		// Bearer tokens in echoed headers
		`Bearer\s+[a-zA-Z0-9_\-\.]+`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}
