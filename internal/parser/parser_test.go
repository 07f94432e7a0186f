package parser

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/utils"
)

func newTestParser() *EmailParser {
	logger := zap.NewNop()
	return NewEmailParser(logger, utils.NewTextProcessor(logger), 0)
}

func TestParsePlainText(t *testing.T) {
	raw := strings.Join([]string{
		"From: Alice Example <alice@example.com>",
		"To: bob@example.org",
		"Subject: Quarterly report",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Hi Bob,",
		"",
		"The report is at https://reports.example.com/q2.",
		"",
		"Alice",
	}, "\r\n")

	facts, err := newTestParser().Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if facts.Subject != "Quarterly report" {
		t.Errorf("Subject = %q", facts.Subject)
	}
	if facts.SenderAddress != "alice@example.com" {
		t.Errorf("SenderAddress = %q", facts.SenderAddress)
	}
	if facts.SenderDomain != "example.com" {
		t.Errorf("SenderDomain = %q", facts.SenderDomain)
	}
	if !strings.Contains(facts.Body, "The report is at") {
		t.Errorf("Body missing text: %q", facts.Body)
	}
	if len(facts.URLs) != 1 || facts.URLs[0] != "https://reports.example.com/q2" {
		t.Errorf("URLs = %v, want trailing dot stripped", facts.URLs)
	}
}

func TestParseMultipartPrefersTextAndMergesURLs(t *testing.T) {
	raw := strings.Join([]string{
		"From: billing@acme-pay.test",
		"Subject: Invoice",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Pay at https://acme-pay.test/invoice/42",
		"--b1",
		"Content-Type: text/html; charset=utf-8",
		"",
		`<html><body><a href="https://acme-pay.test/invoice/42">Pay now</a>`,
		`<a href="https://tracker.test/open?id=7">.</a></body></html>`,
		"--b1--",
	}, "\r\n")

	facts, err := newTestParser().Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(facts.Body, "Pay at") {
		t.Errorf("Body should come from the text part, got %q", facts.Body)
	}
	if facts.HTMLBody == "" {
		t.Error("HTMLBody should be preserved")
	}
	// HTML anchors first, text links deduplicated against them.
	want := []string{"https://acme-pay.test/invoice/42", "https://tracker.test/open?id=7"}
	if len(facts.URLs) != len(want) {
		t.Fatalf("URLs = %v, want %v", facts.URLs, want)
	}
	for i, u := range want {
		if facts.URLs[i] != u {
			t.Errorf("URLs[%d] = %q, want %q", i, facts.URLs[i], u)
		}
	}
}

func TestParseHTMLOnlyBody(t *testing.T) {
	raw := strings.Join([]string{
		"From: news@example.com",
		"Subject: Update",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<html><body><p>Your account settings were changed.</p></body></html>",
	}, "\r\n")

	facts, err := newTestParser().Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(facts.Body, "Your account settings were changed") {
		t.Errorf("Body should be stripped HTML, got %q", facts.Body)
	}
	if strings.Contains(facts.Body, "<p>") {
		t.Errorf("Body still contains markup: %q", facts.Body)
	}
}

func TestParseUnparseableFromFallsBackToRawHeader(t *testing.T) {
	raw := strings.Join([]string{
		"From: not a mailbox at all",
		"Subject: hi",
		"",
		"body",
	}, "\r\n")

	facts, err := newTestParser().Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if facts.SenderAddress != "not a mailbox at all" {
		t.Errorf("SenderAddress = %q", facts.SenderAddress)
	}
	if facts.SenderDomain != "" {
		t.Errorf("SenderDomain = %q, want empty", facts.SenderDomain)
	}
}

func TestParseJoinsAuthenticationResults(t *testing.T) {
	raw := strings.Join([]string{
		"From: noreply@github.com",
		"Subject: ping",
		"Authentication-Results: mx.test; spf=pass smtp.mailfrom=github.com",
		"Authentication-Results: mx.test; dkim=pass header.d=github.com",
		"",
		"body",
	}, "\r\n")

	facts, err := newTestParser().Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	auth := facts.Headers["Authentication-Results"]
	if !strings.Contains(auth, "spf=pass") || !strings.Contains(auth, "dkim=pass") {
		t.Errorf("Authentication-Results not merged: %q", auth)
	}
}

func TestParseIgnoresNonHTTPHrefs(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@example.com",
		"Subject: links",
		"Content-Type: text/html",
		"",
		`<a href="mailto:a@example.com">mail</a>`,
		`<a href="javascript:void(0)">x</a>`,
		`<a href="https://example.com/ok">ok</a>`,
	}, "\r\n")

	facts, err := newTestParser().Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(facts.URLs) != 1 || facts.URLs[0] != "https://example.com/ok" {
		t.Errorf("URLs = %v, want only the https link", facts.URLs)
	}
}

func TestParseTruncatesOversizedBody(t *testing.T) {
	logger := zap.NewNop()
	p := NewEmailParser(logger, utils.NewTextProcessor(logger), 100)
	raw := "From: a@example.com\r\nSubject: big\r\n\r\n" + strings.Repeat("x", 500)

	facts, err := p.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(facts.Body, "Content truncated") {
		t.Errorf("Body should carry the truncation marker, got %d bytes", len(facts.Body))
	}
}

func TestParseBarePlainTextInput(t *testing.T) {
	raw := "Your account is locked. Verify at https://secure-login.test/verify now."

	facts, err := newTestParser().Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if facts.SenderAddress != "" {
		t.Errorf("SenderAddress = %q, want empty", facts.SenderAddress)
	}
	if !strings.Contains(facts.Body, "account is locked") {
		t.Errorf("Body = %q", facts.Body)
	}
	if len(facts.URLs) != 1 || facts.URLs[0] != "https://secure-login.test/verify" {
		t.Errorf("URLs = %v", facts.URLs)
	}
}

func TestParseEmptyInput(t *testing.T) {
	if _, err := newTestParser().Parse([]byte("  \r\n ")); err == nil {
		t.Fatal("expected error for empty input")
	}
}
