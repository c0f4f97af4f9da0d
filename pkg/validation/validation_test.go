package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid email", "user@example.com", false},
		{"valid email with subdomain", "info@mail.fahrschule.de", false},
		{"empty email", "", true},
		{"invalid format", "invalid-email", true},
		{"missing @", "userexample.com", true},
		{"too long", strings.Repeat("a", 250) + "@example.com", true},
		{"valid with plus", "user+tag@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			assert.Equal(t, tt.wantErr, err != nil, "ValidateEmail(%q) = %v", tt.email, err)
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"valid username", "user1", false},
		{"valid with dot", "max.mustermann", false},
		{"too short", "ab", true},
		{"empty", "   ", true},
		{"spaces", "max muster", true},
		{"too long", strings.Repeat("a", 51), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			assert.Equal(t, tt.wantErr, err != nil, "ValidateUsername(%q) = %v", tt.username, err)
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("user123"))
	assert.Error(t, ValidatePassword(""))
	assert.Error(t, ValidatePassword("12345"))
	assert.Error(t, ValidatePassword(strings.Repeat("x", 73)))
}

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		slug    string
		wantErr bool
	}{
		{"mueller", false},
		{"fahrschule-koeln", false},
		{"a1", false},
		{"", true},
		{"-leading", true},
		{"Upper", true},
		{"with.dot", true},
		{"ümlaut", true},
		{strings.Repeat("a", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			err := ValidateSlug(tt.slug)
			assert.Equal(t, tt.wantErr, err != nil, "ValidateSlug(%q) = %v", tt.slug, err)
		})
	}
}

func TestValidateFrameName(t *testing.T) {
	assert.NoError(t, ValidateFrameName("Führerschein Classic"))
	assert.Error(t, ValidateFrameName("  "))
	assert.Error(t, ValidateFrameName(strings.Repeat("ä", 101)))
}

func TestValidateAssetURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https", "https://www.falkendrohne.de/selfie/rahmen3.png?w=400", false},
		{"http", "http://localhost:8080/frame.png", false},
		{"relative path", "/frames/classic.png", false},
		{"protocol relative", "//cdn.example.com/a.png", true},
		{"empty", "", true},
		{"ftp", "ftp://example.com/a.png", true},
		{"javascript", "javascript:alert(1)", true},
		{"no host", "https:///a.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAssetURL(tt.url)
			assert.Equal(t, tt.wantErr, err != nil, "ValidateAssetURL(%q) = %v", tt.url, err)
		})
	}
}

func TestValidateStringLength(t *testing.T) {
	assert.NoError(t, ValidateStringLength("abc", 1, 3, "field"))
	assert.Error(t, ValidateStringLength("", 1, 3, "field"))
	assert.Error(t, ValidateStringLength("abcd", 1, 3, "field"))
}
