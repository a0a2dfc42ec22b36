package correction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrect(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		input     string
		want      string
		corrected bool
	}{
		{"gmail alias stripped", DefaultOptions(), "JOHN+promo@Gmail.com", "john@gmail.com", true},
		{"domain typo", DefaultOptions(), "user@gmial.com", "user@gmail.com", true},
		{"typo then alias", DefaultOptions(), "user+news@gamil.com", "user@gmail.com", true},
		{"australian tld without dots", DefaultOptions(), "user@bigpondcomau", "user@bigpond.com.au", true},
		{"australian tld with stray dot", DefaultOptions(), "user@example.comau", "user@example.com.au", true},
		{"net.au variant", DefaultOptions(), "user@iinetnetau", "user@iinet.net.au", true},
		{"already dotted au untouched", DefaultOptions(), "user@bigpond.com.au", "user@bigpond.com.au", false},
		{"whitespace removed", DefaultOptions(), "  jo hn@gmail.com ", "john@gmail.com", true},
		{"case folded", DefaultOptions(), "John@Example.com", "john@example.com", true},
		{"clean address untouched", DefaultOptions(), "jane@example.com", "jane@example.com", false},
		{"alias kept when disabled", Options{CheckAustralianTLDs: true}, "john+promo@gmail.com", "john+promo@gmail.com", false},
		{"leading plus kept", DefaultOptions(), "+promo@gmail.com", "+promo@gmail.com", false},
		{"alias kept on other domains", DefaultOptions(), "john+promo@example.com", "john+promo@example.com", false},
		{"au check disabled", Options{RemoveGmailAliases: true}, "user@bigpondcomau", "user@bigpondcomau", false},
		{"no at sign", DefaultOptions(), "not-an-email", "not-an-email", false},
		{"empty", DefaultOptions(), "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.opts).Correct(tt.input)
			assert.Equal(t, tt.want, got.Address)
			assert.Equal(t, tt.corrected, got.Corrected)
		})
	}
}

func TestCorrect_IdempotentOverTypoTable(t *testing.T) {
	c := New(DefaultOptions())
	for typo := range TypoDomains() {
		for _, local := range []string{"user", "User+tag", " first.last "} {
			first := c.Correct(local + "@" + typo)
			second := c.Correct(first.Address)
			assert.Equal(t, first.Address, second.Address, "address for %s", typo)
			assert.False(t, second.Corrected, "second pass for %s", typo)
		}
	}
}

func TestCorrect_AustralianSuffixOrder(t *testing.T) {
	c := New(DefaultOptions())

	// "comau" must win over the bare "au" entry.
	assert.Equal(t, "a@shop.com.au", c.Correct("a@shopcomau").Address)
	// Only the bare suffix applies here.
	assert.Equal(t, "a@shop.au", c.Correct("a@shopau").Address)
}

func TestIsValidFormat(t *testing.T) {
	valid := []string{"a@b.com", "first.last+tag@sub.example.co.uk"}
	invalid := []string{"", "not-an-email", "a@b", "@b.com", "a@.com.", "a b@c.com", " a@b.com", "a@b@c.com"}

	for _, v := range valid {
		assert.True(t, IsValidFormat(v), v)
	}
	for _, v := range invalid {
		assert.False(t, IsValidFormat(v), v)
	}
}

func TestIsCommonDomain(t *testing.T) {
	assert.True(t, IsCommonDomain("x@gmail.com"))
	assert.True(t, IsCommonDomain("x@icloud.com"))
	assert.False(t, IsCommonDomain("x@example.com"))
	assert.False(t, IsCommonDomain("no-domain"))
}
