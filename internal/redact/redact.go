// Package redact scrubs known credential substrings from log lines and
// error messages before they leave the process, per the LLM Gateway's
// security requirement in spec.md §4.A: "Any log record containing a
// credential token substring MUST be rewritten so the token is replaced
// with a fixed redaction marker."
package redact

import "strings"

// Marker replaces a detected credential substring.
const Marker = "[REDACTED]"

// Scrubber rewrites known secret substrings out of arbitrary text. It is
// intentionally simple substring replacement rather than pattern-based
// detection (gitleaks' pattern engine, wired in internal/analyzer for
// scanning reviewed code itself, is the heavier tool for that job — see
// DESIGN.md for why the Gateway's own credential redaction doesn't reach
// for it).
type Scrubber struct {
	secrets []string
}

// New builds a Scrubber that will redact every non-empty secret given.
func New(secrets ...string) *Scrubber {
	s := &Scrubber{}
	for _, secret := range secrets {
		if strings.TrimSpace(secret) != "" {
			s.secrets = append(s.secrets, secret)
		}
	}
	return s
}

// Add registers an additional secret to redact.
func (s *Scrubber) Add(secret string) {
	if strings.TrimSpace(secret) != "" {
		s.secrets = append(s.secrets, secret)
	}
}

// Redact returns text with every registered secret substring replaced by
// Marker. Longer secrets are replaced first so that one secret being a
// prefix of another doesn't leave a partial token exposed.
func (s *Scrubber) Redact(text string) string {
	if text == "" || len(s.secrets) == 0 {
		return text
	}
	ordered := make([]string, len(s.secrets))
	copy(ordered, s.secrets)
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if len(ordered[j]) > len(ordered[i]) {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}
	out := text
	for _, secret := range ordered {
		out = strings.ReplaceAll(out, secret, Marker)
	}
	return out
}

// RedactError rewrites a credential substring out of an error's message,
// wrapping the result so the original type is lost but no secret survives.
func (s *Scrubber) RedactError(err error) error {
	if err == nil {
		return nil
	}
	redacted := s.Redact(err.Error())
	if redacted == err.Error() {
		return err
	}
	return redactedError(redacted)
}

type redactedError string

func (e redactedError) Error() string { return string(e) }
