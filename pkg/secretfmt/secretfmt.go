// Package secretfmt renders secret-bearing config fields (API keys, HMAC
// secrets, database passwords) so that logging or dumping a config struct
// never leaks the raw value, per the global invariant in spec §3.2.
package secretfmt

const redacted = "[REDACTED]"

// Secret wraps a sensitive string. Its zero value is safe to log.
type Secret string

// String implements fmt.Stringer; it never returns the wrapped value.
func (s Secret) String() string {
	return redacted
}

// MarshalJSON implements json.Marshaler so Secret fields serialize to the
// same literal placeholder instead of the underlying value.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Reveal returns the underlying value. Callers that need the real secret
// (signing, dialing, comparing) must call this explicitly — it can never
// happen by accident via Stringer/logging/JSON paths.
func (s Secret) Reveal() string {
	return string(s)
}

// IsSet reports whether the secret carries a non-empty value.
func (s Secret) IsSet() bool {
	return s != ""
}
