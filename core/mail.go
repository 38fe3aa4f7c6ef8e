package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path/filepath"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

var (
	templates     = make(tmplCache)
	templatesOnce sync.Once
)

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: tmplCacheEntry}

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
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails.
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// ParseEmailTemplates walks the "templates" dir of fsys and caches every
// .html and .txt template found, keyed by base name and extension.
// Missing templates are not fatal; messages fall back to BodyStr.
func ParseEmailTemplates(logger Logger, fsys fs.FS) {
	templatesOnce.Do(func() {
		err := fs.WalkDir(fsys, "templates", func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			ext := strings.TrimPrefix(filepath.Ext(path), ".")
			if ext != "html" && ext != "txt" {
				return nil
			}
			name := strings.TrimSuffix(filepath.Base(path), "."+ext)

			entry, ok := templates[name]
			if !ok {
				entry = make(tmplCacheEntry, 2)
				templates[name] = entry
			}
			switch ext {
			case "html":
				tmpl, err := htmltmpl.ParseFS(fsys, path)
				if err != nil {
					return errors.Wrapf(err, "parsing %s", path)
				}
				entry[ext] = tmpl
			case "txt":
				tmpl, err := texttmpl.ParseFS(fsys, path)
				if err != nil {
					return errors.Wrapf(err, "parsing %s", path)
				}
				entry[ext] = tmpl
			}
			return nil
		})
		if err != nil {
			logger.Warn("parsing email templates", err)
		}
	})
}

func (m *EmailMessage) getTemplate(ext string) (interface{}, bool) {
	cache, ok := templates[m.TemplateName]
	if !ok {
		return nil, ok
	}
	tmpl, ok := cache[ext]
	return tmpl, ok
}

func (m *EmailMessage) renderText() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	tmpl, ok := m.getTemplate("txt")
	if !ok {
		return nil
	}
	var buf bytes.Buffer
	if err := tmpl.(*texttmpl.Template).Execute(&buf, m.TemplateData); err != nil {
		return errors.Wrap(err, "executing text template")
	}
	m.TextContent = buf.String()
	return nil
}

func (m *EmailMessage) renderHTML() error {
	if m.TemplateName == "" {
		return nil
	}
	tmpl, ok := m.getTemplate("html")
	if !ok {
		return nil
	}
	var buf bytes.Buffer
	if err := tmpl.(*htmltmpl.Template).Execute(&buf, m.TemplateData); err != nil {
		return errors.Wrap(err, "executing html template")
	}
	m.HTMLContent = buf.String()
	return nil
}

// Render resolves the message's text and HTML contents from its template
// (if any) or its plain BodyStr.
func (m *EmailMessage) Render() error {
	if err := m.renderText(); err != nil {
		return err
	}
	return m.renderHTML()
}

func (m *EmailMessage) HasRecipients() bool {
	return len(m.To)+len(m.Cc)+len(m.Bcc) > 0
}

func (m *EmailMessage) HasContent() bool {
	return m.TextContent != "" || m.HTMLContent != ""
}

func (m *EmailMessage) HasAttachments() bool {
	return len(m.Attachments) > 0
}
