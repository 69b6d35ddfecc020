package types

// redacted is the placeholder substituted for secret values in logs and
// serialized output.
const redacted = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a sensitive configuration value (API keys, signing
// secrets, connection strings). It implements fmt.Stringer and
// json.Marshaler with a redacted placeholder so the raw value cannot leak
// through logging or config dumps. Call Unmask only at the point the raw
// value is handed to a driver or HTTP client.
type SecretString string

// String returns the redacted placeholder.
func (s SecretString) String() string {
	return redacted
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}
