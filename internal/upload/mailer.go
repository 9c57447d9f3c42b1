// Package upload sends zipped projects to operators by email.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wcscanner/server/internal/config"
)

var (
	ErrNotConfigured    = errors.New("mail is not configured")
	ErrInvalidRecipient = errors.New("invalid recipient")
)

// maxAttachment keeps messages under common SMTP size limits.
const maxAttachment = 20 << 20

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer implements rig.Uploader over SMTP.
type Mailer struct {
	cfg  config.MailConfig
	send sendFunc
	now  func() time.Time
}

func NewMailer(cfg config.MailConfig) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

func (m *Mailer) EmailZip(ctx context.Context, project, zipPath, recipient string) error {
	if m.cfg.Host == "" || m.cfg.From == "" {
		return ErrNotConfigured
	}
	to, err := mail.ParseAddress(recipient)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidRecipient, recipient, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(zipPath)
	if err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}
	if info.Size() > maxAttachment {
		return fmt.Errorf("archive of %s is %d bytes, over the %d byte mail limit", project, info.Size(), maxAttachment)
	}
	attachment, err := os.ReadFile(zipPath)
	if err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}

	msg, err := m.compose(project, to.Address, filepath.Base(zipPath), attachment)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, []string{to.Address}, msg); err != nil {
		return fmt.Errorf("sending mail via %s: %w", addr, err)
	}

	log.Printf("[mailer] Sent %s (%d bytes) to %s", filepath.Base(zipPath), len(attachment), to.Address)
	return nil
}

func (m *Mailer) compose(project, to, filename string, attachment []byte) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	subject := strings.ReplaceAll(m.cfg.Subject, "{project}", project)
	fmt.Fprintf(&buf, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(text, "Pictures of scan project %q are attached.\r\n", project)

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"application/zip"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": filename})},
	})
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(attachment)
	for len(encoded) > 76 {
		part.Write([]byte(encoded[:76] + "\r\n"))
		encoded = encoded[76:]
	}
	part.Write([]byte(encoded + "\r\n"))

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
