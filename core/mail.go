package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/assets"
)

const emailTemplatesDir = "templates/email"

var (
	emailTemplates     map[string]*emailTemplate // by template name
	emailTemplatesOnce sync.Once
)

type (
	// emailTemplate pairs the text and html renditions of a message; either may be missing.
	emailTemplate struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	// Attachment content is base64 encoded.
	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // plain text body, used instead of the template
		Attachments []Attachment

		TemplateName string // file name without extension, under assets/templates/email
		TemplateData interface{}

		// set by Render
		TextContent string
		HTMLContent string
	}

	// TemplateContext is the value templates are executed with; the message data is under .Data
	TemplateContext struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent and HTMLContent. Unknown templates render nothing.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	emailTemplatesOnce.Do(loadEmailTemplates)
	tmpl, ok := emailTemplates[m.TemplateName]
	if !ok {
		return nil
	}
	tctx := TemplateContext{AppName: Conf.AppName, FrontendBaseURL: Conf.FrontendBaseURL, Data: m.TemplateData}

	var buf bytes.Buffer
	if tmpl.text != nil && m.BodyStr == "" {
		if err := tmpl.text.ExecuteTemplate(&buf, "base", tctx); err != nil {
			return errors.Wrap(err, "rendering text")
		}
		m.TextContent = buf.String()
		buf.Reset()
	}
	if tmpl.html != nil {
		if err := tmpl.html.ExecuteTemplate(&buf, "base", tctx); err != nil {
			return errors.Wrap(err, "rendering html")
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

// Attach adds the content of `r`; the content type is sniffed unless given.
func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := ioutil.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading attachment")
	}

	contentType := http.DetectContentType(content)
	if len(ct) > 0 && ct[0] != "" {
		contentType = ct[0]
	}
	m.Attachments = append(m.Attachments, Attachment{
		Content:     bytes.NewBufferString(base64.StdEncoding.EncodeToString(content)),
		ContentType: contentType,
		Filename:    filename,
	})
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return m.TextContent != "" || m.HTMLContent != "" }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// loadEmailTemplates parses every "<name>.txt" and "<name>.gohtml" along with its "_base" layout.
func loadEmailTemplates() {
	emailTemplates = make(map[string]*emailTemplate)

	entries, err := assets.FS.ReadDir(emailTemplatesDir)
	if err != nil {
		log.Printf("core.loadEmailTemplates: %v", err)
		return
	}
	strict := Conf.Debug || Conf.TestMode

	for _, de := range entries {
		fname := de.Name()
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || (ext != ".txt" && ext != ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		tmpl, ok := emailTemplates[name]
		if !ok {
			tmpl = new(emailTemplate)
			emailTemplates[name] = tmpl
		}

		files := []string{path.Join(emailTemplatesDir, "_base"+ext), path.Join(emailTemplatesDir, fname)}
		if ext == ".txt" {
			tmpl.text, err = texttmpl.ParseFS(assets.FS, files...)
			if err == nil && strict {
				tmpl.text = tmpl.text.Option("missingkey=error")
			}
		} else {
			tmpl.html, err = htmltmpl.ParseFS(assets.FS, files...)
			if err == nil && strict {
				tmpl.html = tmpl.html.Option("missingkey=error")
			}
		}
		if err != nil {
			log.Printf("core.loadEmailTemplates(%s): %v", fname, err)
		}
	}
}
