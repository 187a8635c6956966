package types

// redactedPlaceholder replaces secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds an upstream credential (the NOAA token, the EIA API
// key) in a form that cannot leak by accident: String and MarshalJSON both
// emit a fixed placeholder, so a credential that ends up in a slog record,
// a fmt verb, or a serialized config snapshot shows as redacted text. The
// raw value comes out only through Unmask, which the source clients call
// when stamping the credential onto an outgoing request.
type SecretString string

func (s SecretString) String() string {
	return redactedPlaceholder
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the plaintext credential.
func (s SecretString) Unmask() string {
	return string(s)
}
