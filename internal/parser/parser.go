package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/jaytaylor/html2text"
	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/calder/phishscan/internal/core"
	"github.com/calder/phishscan/internal/utils"
)

const defaultMaxBodySize = 512 * 1024

// Plain-text bodies carry bare links; this catches them without a full
// URL grammar. Trailing punctuation is stripped afterwards.
var textURLRe = regexp.MustCompile(`https?://[^\s<>"']+`)

// EmailParser turns a raw RFC 5322 message into the flat fact set the
// scan pipeline consumes. MIME walking, charset handling and HTML
// stripping all happen here so the analyzers never see wire format.
type EmailParser struct {
	logger      *zap.Logger
	text        *utils.TextProcessor
	maxBodySize int
}

// NewEmailParser creates a new EmailParser. maxBodySize caps the decoded
// body length; zero selects the default.
func NewEmailParser(logger *zap.Logger, text *utils.TextProcessor, maxBodySize int) *EmailParser {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	return &EmailParser{
		logger:      logger,
		text:        text,
		maxBodySize: maxBodySize,
	}
}

// Parse decodes a raw message into EmailFacts. Messages with broken MIME
// structure still yield facts when enmime can recover a usable envelope;
// input that is not an RFC 5322 message at all is treated as a bare
// plain-text body.
func (p *EmailParser) Parse(raw []byte) (*core.EmailFacts, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("empty message")
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		p.logger.Debug("Not a parseable message, treating input as plain text", zap.Error(err))
		return p.plainTextFacts(raw), nil
	}
	for _, e := range env.Errors {
		p.logger.Debug("MIME defect tolerated",
			zap.String("name", e.Name),
			zap.String("detail", e.Detail))
	}

	sender := senderAddress(env)
	body := env.Text
	if strings.TrimSpace(body) == "" && env.HTML != "" {
		body = htmlToText(env.HTML)
	}
	body = p.text.ProcessText(body, p.maxBodySize)

	facts := &core.EmailFacts{
		Subject:       p.text.ProcessText(env.GetHeader("Subject"), p.maxBodySize),
		SenderAddress: sender,
		SenderDomain:  utils.DomainFromEmail(sender),
		Body:          body,
		HTMLBody:      env.HTML,
		URLs:          collectURLs(env.HTML, body),
		Headers:       headerMap(env),
	}

	p.logger.Debug("Parsed email",
		zap.String("sender_domain", facts.SenderDomain),
		zap.Int("body_size", len(facts.Body)),
		zap.Int("url_count", len(facts.URLs)))

	return facts, nil
}

// plainTextFacts builds facts for input with no message structure: the
// whole input becomes the body and only bare links are extracted.
func (p *EmailParser) plainTextFacts(raw []byte) *core.EmailFacts {
	body := p.text.ProcessText(string(raw), p.maxBodySize)
	return &core.EmailFacts{
		Body:    body,
		URLs:    collectURLs("", body),
		Headers: map[string]string{},
	}
}

// senderAddress resolves the From header to a bare address, falling back
// to the raw header when it is not a parseable mailbox.
func senderAddress(env *enmime.Envelope) string {
	raw := env.GetHeader("From")
	addrs, err := env.AddressList("From")
	if err != nil || len(addrs) == 0 {
		return strings.TrimSpace(raw)
	}
	return addrs[0].Address
}

// headerMap flattens the envelope headers. Repeated headers keep the
// first value except Authentication-Results, where values are joined so
// no SPF/DKIM/DMARC stamp is lost.
func headerMap(env *enmime.Envelope) map[string]string {
	headers := make(map[string]string)
	for _, key := range env.GetHeaderKeys() {
		values := env.GetHeaderValues(key)
		if len(values) == 0 {
			continue
		}
		if strings.EqualFold(key, "Authentication-Results") {
			headers[key] = strings.Join(values, "; ")
			continue
		}
		if _, ok := headers[key]; !ok {
			headers[key] = values[0]
		}
	}
	return headers
}

// collectURLs merges anchor hrefs from the HTML part with bare links
// found in the text body, deduplicated in first-seen order. HTML links
// come first since those are what the recipient would click.
func collectURLs(htmlBody, textBody string) []string {
	var urls []string
	seen := make(map[string]struct{})
	add := func(u string) {
		u = strings.TrimRight(strings.TrimSpace(u), ".,;:)]}>\"'")
		if u == "" || !strings.HasPrefix(strings.ToLower(u), "http") {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	for _, u := range anchorHrefs(htmlBody) {
		add(u)
	}
	for _, u := range textURLRe.FindAllString(textBody, -1) {
		add(u)
	}
	return urls
}

// anchorHrefs walks the HTML document and returns href targets of <a>
// elements in document order. The tokenizer tolerates the malformed
// markup common in phishing mail.
func anchorHrefs(htmlBody string) []string {
	if htmlBody == "" {
		return nil
	}
	var hrefs []string
	tokenizer := html.NewTokenizer(strings.NewReader(htmlBody))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return hrefs
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := tokenizer.TagName()
		if len(name) != 1 || name[0] != 'a' || !hasAttr {
			continue
		}
		for {
			key, val, more := tokenizer.TagAttr()
			if string(key) == "href" {
				hrefs = append(hrefs, string(val))
				break
			}
			if !more {
				break
			}
		}
	}
}

// htmlToText strips markup from an HTML-only message so the keyword and
// classifier passes see readable prose instead of tags.
func htmlToText(htmlBody string) string {
	text, err := html2text.FromString(htmlBody, html2text.Options{TextOnly: true})
	if err != nil {
		// Last resort: crude tag strip via the tokenizer.
		var sb strings.Builder
		tokenizer := html.NewTokenizer(strings.NewReader(htmlBody))
		for {
			tt := tokenizer.Next()
			if tt == html.ErrorToken {
				break
			}
			if tt == html.TextToken {
				sb.Write(tokenizer.Text())
				sb.WriteByte(' ')
			}
		}
		return strings.TrimSpace(sb.String())
	}
	return text
}
