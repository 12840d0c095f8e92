package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	netmail "net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/UfSoft/ILog-OLD/internal/config"
	"github.com/UfSoft/ILog-OLD/internal/settings"
	log "github.com/sirupsen/logrus"
)

var (
	errNoRecipients = errors.New("mail: no recipients")
	errNoSender     = errors.New("mail: sender address not configured")
)

// Message is a plain text mail.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Settings holds the delivery options read from the instance config.
type Settings struct {
	Host        string
	Port        int
	User        string
	Password    string
	FromName    string
	FromAddress string
	UseTLS      bool
	LogOnly     bool
	Signature   string
}

// SettingsFromStore reads mail settings from the config store.
func SettingsFromStore(store *config.Store) Settings {
	if store == nil {
		return Settings{Host: "localhost", Port: 25, LogOnly: true}
	}
	return Settings{
		Host:        store.String(settings.SMTPHostKey),
		Port:        store.Int(settings.SMTPPortKey),
		User:        store.String(settings.SMTPUserKey),
		Password:    store.String(settings.SMTPPasswordKey),
		FromName:    store.String(settings.SMTPFromNameKey),
		FromAddress: store.String(settings.EmailKey),
		UseTLS:      store.Bool(settings.SMTPUseTLSKey),
		LogOnly:     store.Bool(settings.LogEmailOnlyKey),
		Signature:   store.String(settings.EmailSignatureKey),
	}
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Sender delivers mail over SMTP or writes it to the log.
type Sender struct {
	settings func() Settings
	send     sendFunc
	now      func() time.Time
}

// NewSender builds a Sender. Settings are read on every send.
func NewSender(settingsFn func() Settings) *Sender {
	s := &Sender{settings: settingsFn, now: time.Now}
	s.send = s.smtpSend
	return s
}

// Send delivers msg to every recipient.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if s == nil || s.settings == nil {
		return fmt.Errorf("mail: sender not configured")
	}
	if len(msg.To) == 0 {
		return errNoRecipients
	}
	cfg := s.settings()
	body := msg.Body
	if sig := strings.TrimSpace(cfg.Signature); sig != "" {
		body = strings.TrimRight(body, "\n") + "\n\n-- \n" + sig + "\n"
	}

	if cfg.LogOnly {
		log.WithFields(log.Fields{
			"to":      strings.Join(msg.To, ", "),
			"subject": msg.Subject,
		}).Info("mail: " + body)
		return nil
	}
	if strings.TrimSpace(cfg.FromAddress) == "" {
		return errNoSender
	}
	if ctx != nil {
		if errCtx := ctx.Err(); errCtx != nil {
			return errCtx
		}
	}

	payload := s.build(cfg, msg.To, msg.Subject, body)
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	if errSend := s.send(addr, auth, cfg.FromAddress, msg.To, payload); errSend != nil {
		return fmt.Errorf("mail: send to %s: %w", addr, errSend)
	}
	log.WithField("to", strings.Join(msg.To, ", ")).Debug("mail: sent")
	return nil
}

func (s *Sender) build(cfg Settings, to []string, subject, body string) []byte {
	from := netmail.Address{Name: cfg.FromName, Address: cfg.FromAddress}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", s.now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return buf.Bytes()
}

// smtpSend uses implicit TLS when smtp_use_tls is set; otherwise smtp.SendMail upgrades via STARTTLS when offered.
func (s *Sender) smtpSend(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	cfg := s.settings()
	if !cfg.UseTLS {
		return smtp.SendMail(addr, auth, from, to, msg)
	}
	conn, errDial := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12})
	if errDial != nil {
		return errDial
	}
	client, errClient := smtp.NewClient(conn, cfg.Host)
	if errClient != nil {
		_ = conn.Close()
		return errClient
	}
	defer func() {
		if errClose := client.Close(); errClose != nil {
			log.WithError(errClose).Debug("mail: close smtp client")
		}
	}()
	if auth != nil {
		if errAuth := client.Auth(auth); errAuth != nil {
			return errAuth
		}
	}
	if errMail := client.Mail(from); errMail != nil {
		return errMail
	}
	for _, rcpt := range to {
		if errRcpt := client.Rcpt(rcpt); errRcpt != nil {
			return errRcpt
		}
	}
	w, errData := client.Data()
	if errData != nil {
		return errData
	}
	if _, errWrite := w.Write(msg); errWrite != nil {
		return errWrite
	}
	if errClose := w.Close(); errClose != nil {
		return errClose
	}
	return client.Quit()
}
