package verify

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestVerifier(t *testing.T) *URLVerifier {
	t.Helper()
	v := NewURLVerifier(zap.NewNop(), time.Minute, time.Minute)
	t.Cleanup(v.Stop)
	return v
}

func TestVerifyOfficialDomains(t *testing.T) {
	v := newTestVerifier(t)
	tests := []struct {
		name    string
		url     string
		service string
	}{
		{"root domain", "https://paypal.com/", "paypal"},
		{"allowed subdomain", "https://accounts.google.com/signin", "google"},
		{"allowed path", "https://signin.amazon.com/signin/account", "amazon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Verify(context.Background(), tt.url)
			if !result.IsLegitimate {
				t.Fatalf("Verify(%s) not legitimate: %+v", tt.url, result)
			}
			if result.Service != tt.service || result.Confidence != 0.95 {
				t.Errorf("result = %q at %v, want %q at 0.95", result.Service, result.Confidence, tt.service)
			}
		})
	}
}

func TestVerifyUnknownSubdomainOfOfficialDomain(t *testing.T) {
	v := newTestVerifier(t)
	result := v.Verify(context.Background(), "https://totally-real.paypal.com/prize")
	if result.IsLegitimate {
		t.Errorf("unlisted subdomain off an unlisted path treated as official: %+v", result)
	}
}

func TestVerifyShortener(t *testing.T) {
	v := newTestVerifier(t)
	result := v.Verify(context.Background(), "https://bit.ly/3xyzzy")
	if !result.IsLegitimate || result.Confidence != 0.8 {
		t.Fatalf("result = %+v, want legitimate shortener at 0.8", result)
	}
	if !containsSubstring(result.Warnings, "hides final destination") {
		t.Errorf("warnings = %v, want destination-hiding note", result.Warnings)
	}
}

func TestVerifyLookalikeDomains(t *testing.T) {
	v := newTestVerifier(t)
	tests := []struct {
		name string
		url  string
	}{
		{"digit substitution", "https://paypa1.com/login"},
		{"single edit", "https://paypall.com/login"},
		{"zero for o", "https://g00gle.com/account"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Verify(context.Background(), tt.url)
			if result.IsLegitimate {
				t.Fatalf("lookalike verified as legitimate: %+v", result)
			}
			if !containsSubstring(result.Warnings, "similar to") {
				t.Errorf("warnings = %v, want lookalike warning", result.Warnings)
			}
		})
	}
}

func TestVerifyObfuscationWarnings(t *testing.T) {
	v := newTestVerifier(t)
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"ip address", "http://192.168.1.1/login", "IP address"},
		{"encoded characters", "https://example.com/%68%74%74%70", "encoded characters"},
		{"suspicious tld", "https://win-prizes.tk/claim", "top-level domain"},
		{"suspicious subdomain", "https://secure.random-site.test/x", "Suspicious subdomain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Verify(context.Background(), tt.url)
			if !containsSubstring(result.Warnings, tt.want) {
				t.Errorf("Verify(%s) warnings = %v, want one containing %q", tt.url, result.Warnings, tt.want)
			}
		})
	}
}

func TestVerifyUnparseableURL(t *testing.T) {
	v := newTestVerifier(t)
	result := v.Verify(context.Background(), "::notaurl::")
	if result.IsLegitimate {
		t.Error("unparseable URL verified as legitimate")
	}
	if len(result.Warnings) == 0 {
		t.Error("unparseable URL produced no warning")
	}
}

func TestVerifyResultsAreCached(t *testing.T) {
	v := newTestVerifier(t)
	first := v.Verify(context.Background(), "https://paypal.com/")
	second := v.Verify(context.Background(), "https://paypal.com/")
	if first.Service != second.Service || first.Confidence != second.Confidence {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}
	if v.cache.Len() == 0 {
		t.Error("verification result not cached")
	}
}

func containsSubstring(list []string, substr string) bool {
	for _, s := range list {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
