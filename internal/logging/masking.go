// Package logging builds the service logger and masks secrets before they
// reach it.
package logging

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Redacted replaces a secret value in log output.
const Redacted = "[REDACTED]"

// SensitiveFields are JSON keys whose values never appear in logs. API
// tokens are only ever returned once, in the body of the create response.
var SensitiveFields = []string{"token", "master_key", "access_key"}

// MaskHeader returns a log-safe rendering of a header value.
//
// Password and secret headers are fully redacted. Credential headers keep
// their last four characters so operators can tell keys apart. Everything
// else is returned unchanged.
func MaskHeader(name, value string) string {
	lower := strings.ToLower(name)

	for _, s := range []string{"password", "secret", "private-key"} {
		if strings.Contains(lower, s) {
			return Redacted
		}
	}

	switch lower {
	case "authorization", "accesskey", "x-api-key", "x-access-key":
		if len(value) < 4 {
			return "****"
		}
		return "****" + value[len(value)-4:]
	}
	return value
}

// MaskJSONBody replaces the values of the named keys, at any depth, with
// Redacted. Bodies that are not JSON are returned unchanged.
func MaskJSONBody(body []byte, fields []string) []byte {
	if len(body) == 0 || len(fields) == 0 {
		return body
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}

	redact := make(map[string]bool, len(fields))
	for _, f := range fields {
		redact[f] = true
	}

	out, err := json.Marshal(maskValue(data, redact))
	if err != nil {
		return body
	}
	return out
}

func maskValue(value any, redact map[string]bool) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			if redact[key] {
				out[key] = Redacted
				continue
			}
			out[key] = maskValue(val, redact)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = maskValue(item, redact)
		}
		return out
	default:
		return value
	}
}

// FormatBinaryData describes a non-text body by its size.
func FormatBinaryData(data []byte) string {
	return fmt.Sprintf("[BINARY: %d bytes]", len(data))
}
