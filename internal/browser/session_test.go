package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnLoginFlow(t *testing.T) {
	tests := map[string]bool{
		"https://x.com/home":                  false,
		"https://x.com/janedoe/followers":     false,
		"https://x.com/i/flow/login":          true,
		"https://x.com/login?redirect=/home":  true,
		"https://x.com/i/flow/single_sign_on": true,
		"":                                    false,
	}
	for url, want := range tests {
		assert.Equal(t, want, onLoginFlow(url), url)
	}
}
