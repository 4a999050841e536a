package provider

import "strings"

// sensitiveKeys are masked wherever they appear in a logged payload
var sensitiveKeys = map[string]bool{
	"entityid":              true,
	"access_token":          true,
	"accesstoken":           true,
	"authorization":         true,
	"merchant_id":           true,
	"merchanttransactionid": true,
}

// IsSensitiveKey reports whether values under key must be masked
func IsSensitiveKey(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// MaskValue keeps the last four characters of s
func MaskValue(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// MaskToken masks a bearer authorization header value
func MaskToken(header string) string {
	if rest, ok := strings.CutPrefix(header, "Bearer "); ok {
		return "Bearer " + MaskValue(rest)
	}
	return MaskValue(header)
}

// MaskSensitive returns a copy of fields with sensitive values masked
func MaskSensitive(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		switch {
		case strings.EqualFold(k, "authorization"):
			out[k] = MaskToken(v)
		case IsSensitiveKey(k):
			out[k] = MaskValue(v)
		default:
			out[k] = v
		}
	}
	return out
}

// MaskSensitiveAny masks a decoded JSON document, descending into nested
// objects and arrays. The input is not modified.
func MaskSensitiveAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if s, ok := val.(string); ok && IsSensitiveKey(k) {
				if strings.EqualFold(k, "authorization") {
					out[k] = MaskToken(s)
				} else {
					out[k] = MaskValue(s)
				}
				continue
			}
			out[k] = MaskSensitiveAny(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = MaskSensitiveAny(val)
		}
		return out
	case map[string]string:
		return MaskSensitive(t)
	default:
		return v
	}
}
