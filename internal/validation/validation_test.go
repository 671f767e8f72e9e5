package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"valid", "Str0ng!Passw0rd", ""},
		{"too short", "Sh0rt!", "at least 12"},
		{"too long", strings.Repeat("Aa1!", 33), "must not exceed"},
		{"no upper", "weak!password1", "uppercase"},
		{"no lower", "WEAK!PASSWORD1", "lowercase"},
		{"no digit", "Weak!Password", "digit"},
		{"no special", "WeakPassword12", "special"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	valid := []string{"abc", "skrbl_user", "a-b-c", strings.Repeat("x", 30)}
	invalid := []string{"ab", strings.Repeat("x", 31), "has space", "_lead", "trail-", "émoji"}

	for _, u := range valid {
		assert.NoError(t, ValidateUsername(u), u)
	}
	for _, u := range invalid {
		assert.Error(t, ValidateUsername(u), u)
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("founder@skrbl.ai"))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("a@b"))
	assert.Error(t, ValidateEmail(strings.Repeat("a", 250)+"@x.io"))
}

func TestValidateRoleName(t *testing.T) {
	for _, r := range []string{"vip", "VIP", " founder ", "beta_tester", "tier-2"} {
		assert.NoError(t, ValidateRoleName(r), r)
	}
	for _, r := range []string{"", "v", "1vip", "has space", strings.Repeat("r", 41)} {
		assert.Error(t, ValidateRoleName(r), r)
	}
}

func TestValidateRedirectURL(t *testing.T) {
	base := "https://skrbl.ai"

	assert.NoError(t, ValidateRedirectURL("", base))
	assert.NoError(t, ValidateRedirectURL("https://skrbl.ai/checkout/done", base))
	assert.NoError(t, ValidateRedirectURL("https://SKRBL.ai/x", base))
	assert.Error(t, ValidateRedirectURL("https://evil.example/phish", base))
	assert.Error(t, ValidateRedirectURL("/relative", base))
	assert.Error(t, ValidateRedirectURL("javascript:alert(1)", base))
	assert.NoError(t, ValidateRedirectURL("https://anywhere.example", ""))
}
