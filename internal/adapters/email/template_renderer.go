package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"

	"eventauthoring/internal/domain"
)

//go:embed templates/*
var templateFS embed.FS

// templateRenderer serves the embedded mail templates. Every template name
// maps to three files: <name>_subject.txt, <name>.html, <name>.txt. All
// templates are parsed once at construction so a broken template fails at
// startup, not at send time.
type templateRenderer struct {
	subjects *template.Template
	texts    *template.Template
	htmls    *htmltemplate.Template
}

// NewTemplateRenderer parses the embedded templates and returns a renderer.
func NewTemplateRenderer() (domain.EmailTemplateRenderer, error) {
	subjects, err := template.ParseFS(templateFS, "templates/*_subject.txt")
	if err != nil {
		return nil, fmt.Errorf("parse subject templates: %w", err)
	}
	texts, err := template.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	htmls, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	return &templateRenderer{subjects: subjects, texts: texts, htmls: htmls}, nil
}

// Render executes the named template (e.g. "event_published") with data and
// returns the subject, html body, and text body.
func (r *templateRenderer) Render(templateName string, data any) (subject, htmlBody, textBody string, err error) {
	subject, err = execute(r.subjects, templateName+"_subject.txt", data)
	if err != nil {
		return "", "", "", fmt.Errorf("render subject: %w", err)
	}
	textBody, err = execute(r.texts, templateName+".txt", data)
	if err != nil {
		return "", "", "", fmt.Errorf("render text: %w", err)
	}
	var buf bytes.Buffer
	if err = r.htmls.ExecuteTemplate(&buf, templateName+".html", data); err != nil {
		return "", "", "", fmt.Errorf("render html: %w", err)
	}
	return strings.TrimSpace(subject), buf.String(), textBody, nil
}

func execute(t *template.Template, name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
