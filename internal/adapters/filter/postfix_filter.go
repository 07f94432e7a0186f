package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/core"
	"github.com/calder/phishscan/internal/parser"
)

const analysisTimeout = 10 * time.Second

// PostfixFilter is a Postfix content filter: it accepts messages over
// SMTP, scans them, stamps verdict headers and relays the annotated
// message back to Postfix. Phishing can optionally be rejected outright.
type PostfixFilter struct {
	service          *core.ScanService
	parser           *parser.EmailParser
	logger           *zap.Logger
	listenAddr       string
	server           *smtp.Server
	blockPhishing    bool
	verdictHeader    string
	confidenceHeader string
	reasonHeader     string
	postfixAddr      string
	postfixPort      int
	postfixEnabled   bool
	subjectPrefix    string
	modifySubject    bool
}

// NewPostfixFilter creates a new Postfix content filter.
func NewPostfixFilter(
	service *core.ScanService,
	emailParser *parser.EmailParser,
	logger *zap.Logger,
	listenAddr string,
	blockPhishing bool,
	verdictHeader string,
	confidenceHeader string,
	reasonHeader string,
	postfixAddr string,
	postfixPort int,
	postfixEnabled bool,
	subjectPrefix string,
	modifySubject bool,
) *PostfixFilter {
	if subjectPrefix == "" && modifySubject {
		subjectPrefix = "[**PHISHING**] "
	}

	return &PostfixFilter{
		service:          service,
		parser:           emailParser,
		logger:           logger,
		listenAddr:       listenAddr,
		blockPhishing:    blockPhishing,
		verdictHeader:    verdictHeader,
		confidenceHeader: confidenceHeader,
		reasonHeader:     reasonHeader,
		postfixAddr:      postfixAddr,
		postfixPort:      postfixPort,
		postfixEnabled:   postfixEnabled,
		subjectPrefix:    subjectPrefix,
		modifySubject:    modifySubject,
	}
}

// Start starts the SMTP listener.
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("Postfix filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP listener.
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail parses and scans one raw message. Used for direct calls
// and tests; the SMTP session path goes through Data.
func (f *PostfixFilter) ProcessEmail(ctx context.Context, raw []byte) (*core.ScanVerdict, error) {
	facts, err := f.parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	return f.service.ScanEmail(ctx, facts, core.ScanContext{Source: "smtp"})
}

// sendToPostfix relays the annotated message back to Postfix.
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := fmt.Sprintf("%s:%d", f.postfixAddr, f.postfixPort)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface.
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session.
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface.
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state.
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for the filter).
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address.
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient.
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data receives the message, scans it, and either rejects it or relays
// the annotated copy back to Postfix.
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()

	facts, parseErr := s.filter.parser.Parse(rawData)

	var verdict *core.ScanVerdict
	var scanErr error
	if parseErr != nil {
		scanErr = parseErr
	} else {
		verdict, scanErr = s.filter.service.ScanEmail(ctx, facts, core.ScanContext{Source: "smtp"})
	}

	senderDomain := "unknown"
	if facts != nil && facts.SenderDomain != "" {
		senderDomain = facts.SenderDomain
	}

	if scanErr != nil {
		s.filter.logger.Error("Failed to scan email",
			zap.Error(scanErr),
			zap.String("sender", s.sender),
			zap.String("sender_domain", senderDomain))
		// Fail open: deliver unscanned rather than bounce legitimate mail.
		verdict = &core.ScanVerdict{
			Verdict:           core.VerdictError,
			ConfidencePercent: 0,
			Explanation:       fmt.Sprintf("Error during analysis: %v", scanErr),
		}
	}

	isPhishing := verdict.Verdict == core.VerdictPhishing

	if isPhishing && s.filter.blockPhishing && scanErr == nil {
		s.filter.logger.Info("Rejecting phishing email",
			zap.String("from", s.sender),
			zap.String("sender_domain", senderDomain),
			zap.Float64("confidence", verdict.ConfidencePercent),
			zap.String("reason", verdict.Explanation))
		return fmt.Errorf("550 Rejected as phishing (confidence: %.0f%%)", verdict.ConfidencePercent)
	}

	annotated := s.annotate(rawData, verdict, scanErr)

	if s.filter.postfixEnabled {
		if err := s.filter.sendToPostfix(s.sender, s.recipients, annotated); err != nil {
			s.filter.logger.Error("Failed to send email back to Postfix",
				zap.Error(err),
				zap.String("sender", s.sender))
			return err
		}
	} else {
		s.filter.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
	}

	s.filter.logger.Info("Processed email",
		zap.String("from", s.sender),
		zap.String("sender_domain", senderDomain),
		zap.String("verdict", string(verdict.Verdict)),
		zap.Float64("confidence", verdict.ConfidencePercent))

	return nil
}

// annotate prepends the verdict headers and, when configured, tags the
// subject of a phishing message. The original body bytes pass through
// untouched so MIME parts and attachments survive.
func (s *smtpSession) annotate(rawData []byte, verdict *core.ScanVerdict, scanErr error) []byte {
	var out bytes.Buffer

	fmt.Fprintf(&out, "%s: %s\r\n", s.filter.verdictHeader, verdict.Verdict)
	fmt.Fprintf(&out, "%s: %.2f\r\n", s.filter.confidenceHeader, verdict.ConfidencePercent)
	fmt.Fprintf(&out, "%s: %s\r\n", s.filter.reasonHeader, sanitizeHeaderValue(verdict.Explanation))
	if scanErr != nil {
		fmt.Fprintf(&out, "X-Phish-Analysis-Error: %s\r\n", sanitizeHeaderValue(scanErr.Error()))
	}

	tagSubject := verdict.Verdict == core.VerdictPhishing && s.filter.modifySubject && s.filter.subjectPrefix != ""
	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if !tagSubject || err != nil {
		// Keep the original header block verbatim.
		out.Write(rawData)
		return out.Bytes()
	}

	originalSubject := msg.Header.Get("Subject")
	decodedSubject, decErr := decodeEncodedHeader(originalSubject)
	if decErr != nil {
		decodedSubject = originalSubject
	}
	if !strings.HasPrefix(decodedSubject, s.filter.subjectPrefix) {
		fmt.Fprintf(&out, "Subject: %s\r\n", s.filter.subjectPrefix+decodedSubject)
	} else {
		fmt.Fprintf(&out, "Subject: %s\r\n", decodedSubject)
	}
	for key, values := range msg.Header {
		if strings.EqualFold(key, "Subject") {
			continue
		}
		for _, value := range values {
			fmt.Fprintf(&out, "%s: %s\r\n", key, value)
		}
	}
	out.WriteString("\r\n")

	if offset := bodyOffset(rawData); offset != -1 {
		out.Write(rawData[offset:])
	} else if body, err := io.ReadAll(msg.Body); err == nil {
		out.Write(body)
	}
	return out.Bytes()
}

// sanitizeHeaderValue folds newlines out of a value destined for a
// single header line.
func sanitizeHeaderValue(v string) string {
	v = strings.ReplaceAll(v, "\r", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	return v
}

// Logout handles SMTP logout (not needed for the filter).
func (s *smtpSession) Logout() error {
	return nil
}
