// Package config handles configuration parsing and validation for gembridge.
package config

// RedactedString holds a secret value that must never appear in logs or
// formatted output. The underlying value is only reachable through Value.
type RedactedString string

// String implements fmt.Stringer and hides the secret
func (r RedactedString) String() string {
	if r == "" {
		return ""
	}
	return "[REDACTED]"
}

// MarshalText implements encoding.TextMarshaler and hides the secret
func (r RedactedString) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Value returns the underlying secret value
func (r RedactedString) Value() string {
	return string(r)
}
