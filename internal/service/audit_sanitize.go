package service

import "strings"

// phoneMaskPrefix is how many leading characters of a phone number survive
// masking, enough to identify the operator prefix without the subscriber.
const phoneMaskPrefix = 6

// Keys whose values must never reach audit storage in any form.
var auditDeniedKeys = map[string]bool{
	"passport":      true,
	"passport_no":   true,
	"password":      true,
	"password_hash": true,
	"secret":        true,
	"token":         true,
	"pin":           true,
}

// Keys holding free text: reduced to length plus presence, never stored raw.
var auditFreeTextKeys = map[string]bool{
	"description": true,
	"address":     true,
	"location":    true,
	"comment":     true,
	"message":     true,
	"client_name": true,
	"full_name":   true,
	"detail":      true,
	"cause":       true,
}

// MaskPhone hides a phone number except for a fixed-size prefix.
func MaskPhone(phone string) string {
	if len(phone) <= phoneMaskPrefix {
		return strings.Repeat("*", len(phone))
	}
	return phone[:phoneMaskPrefix] + strings.Repeat("*", len(phone)-phoneMaskPrefix)
}

// Sanitize reduces an event payload to storage-safe data: identity fields
// are removed, phone numbers masked, and free text replaced by its length
// and a presence flag. Nested maps are sanitized recursively.
func Sanitize(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		lower := strings.ToLower(key)
		if auditDeniedKeys[lower] {
			continue
		}

		if nested, ok := value.(map[string]interface{}); ok {
			out[key] = Sanitize(nested)
			continue
		}

		str, isString := value.(string)
		switch {
		case isString && strings.Contains(lower, "phone"):
			out[key+"_masked"] = MaskPhone(str)
		case isString && auditFreeTextKeys[lower]:
			out[key+"_length"] = len(str)
			out["has_"+key] = str != ""
		default:
			out[key] = value
		}
	}
	return out
}
