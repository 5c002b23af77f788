package types

// Secret holds a credential value such as the registry token. The logger
// redacts attributes of this type, and String never returns the raw value.
type Secret string

const redacted = "[REDACTED]"

// String returns a placeholder so that formatting a Secret never leaks it
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// Unsafe returns the raw credential. Call it only at the point of use.
func (s Secret) Unsafe() string {
	return string(s)
}

// IsEmpty reports whether no credential was supplied
func (s Secret) IsEmpty() bool {
	return s == ""
}
