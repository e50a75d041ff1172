package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "+99890*******", MaskPhone("+998901234567"))
	assert.Equal(t, "*****", MaskPhone("12345"))
	assert.Equal(t, "", MaskPhone(""))
}

func TestSanitizeMasksPhones(t *testing.T) {
	out := Sanitize(map[string]interface{}{
		"client_phone": "+998901234567",
	})

	assert.NotContains(t, out, "client_phone")
	assert.Equal(t, "+99890*******", out["client_phone_masked"])
}

func TestSanitizeReducesFreeText(t *testing.T) {
	out := Sanitize(map[string]interface{}{
		"description": "Install new fiber line",
		"address":     "",
	})

	assert.NotContains(t, out, "description")
	assert.Equal(t, 22, out["description_length"])
	assert.Equal(t, true, out["has_description"])
	assert.Equal(t, 0, out["address_length"])
	assert.Equal(t, false, out["has_address"])
}

func TestSanitizeDropsDeniedKeys(t *testing.T) {
	out := Sanitize(map[string]interface{}{
		"passport": "AB1234567",
		"Password": "hunter2",
		"token":    "abc",
		"reason":   "ALLOWED",
	})

	assert.NotContains(t, out, "passport")
	assert.NotContains(t, out, "Password")
	assert.NotContains(t, out, "token")
	assert.Equal(t, "ALLOWED", out["reason"])
}

func TestSanitizeRecursesIntoNestedMaps(t *testing.T) {
	out := Sanitize(map[string]interface{}{
		"client": map[string]interface{}{
			"phone":    "+998901234567",
			"passport": "AB1234567",
			"language": "uz",
		},
	})

	nested, ok := out["client"].(map[string]interface{})
	assert.True(t, ok)
	assert.NotContains(t, nested, "phone")
	assert.NotContains(t, nested, "passport")
	assert.Equal(t, "+99890*******", nested["phone_masked"])
	assert.Equal(t, "uz", nested["language"])
}

func TestSanitizeNilPayload(t *testing.T) {
	out := Sanitize(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
