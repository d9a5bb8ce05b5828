package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

// MsgUnknownFormat is returned for a format outside yaml, markdown, html and pdf
const MsgUnknownFormat = "Input should be 'yaml', 'markdown', 'html' or 'pdf'"

// Service implements interfaces.ExportService
type Service struct {
	tasks  interfaces.TaskService
	logger arbor.ILogger
	clock  func() time.Time
}

// Compile-time assertion
var _ interfaces.ExportService = (*Service)(nil)

// NewService creates a new export service
func NewService(tasks interfaces.TaskService, logger arbor.ILogger) *Service {
	return &Service{
		tasks:  tasks,
		logger: logger,
		clock:  time.Now,
	}
}

// ParseFormat normalises a query value into an ExportFormat; empty defaults to markdown
func ParseFormat(value string) (interfaces.ExportFormat, error) {
	switch format := interfaces.ExportFormat(strings.ToLower(strings.TrimSpace(value))); format {
	case "":
		return interfaces.ExportMarkdown, nil
	case interfaces.ExportYAML, interfaces.ExportMarkdown, interfaces.ExportHTML, interfaces.ExportPDF:
		return format, nil
	}
	return "", models.NewSchemaError("format", MsgUnknownFormat)
}

// Export renders all tasks owned by user in the requested format
func (s *Service) Export(ctx context.Context, user *models.User, format interfaces.ExportFormat) (*interfaces.ExportDocument, error) {
	format, err := ParseFormat(string(format))
	if err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListTasks(ctx, user.ID, models.TaskListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for export: %w", err)
	}

	r := newReport(user, tasks, s.clock().UTC())
	base := "tasks-" + user.Username

	var doc *interfaces.ExportDocument
	switch format {
	case interfaces.ExportYAML:
		body, err := yaml.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("failed to encode yaml report: %w", err)
		}
		doc = &interfaces.ExportDocument{ContentType: "application/yaml", Filename: base + ".yaml", Body: body}

	case interfaces.ExportMarkdown:
		doc = &interfaces.ExportDocument{ContentType: "text/markdown; charset=utf-8", Filename: base + ".md", Body: []byte(r.markdown())}

	case interfaces.ExportHTML:
		body, err := renderHTML(r)
		if err != nil {
			return nil, err
		}
		doc = &interfaces.ExportDocument{ContentType: "text/html; charset=utf-8", Filename: base + ".html", Body: body}

	case interfaces.ExportPDF:
		body, err := renderPDF(r)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to generate PDF")
			return nil, err
		}
		doc = &interfaces.ExportDocument{ContentType: "application/pdf", Filename: base + ".pdf", Body: body}
	}

	s.logger.Debug().
		Str("user_id", user.ID).
		Str("format", string(format)).
		Int("tasks", len(tasks)).
		Int("bytes", len(doc.Body)).
		Msg("Task report exported")

	return doc, nil
}

func renderHTML(r *report) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var content bytes.Buffer
	if err := md.Convert([]byte(r.markdown()), &content); err != nil {
		return nil, fmt.Errorf("failed to render html report: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	buf.WriteString(htmlEscape(r.Title))
	buf.WriteString("</title>\n</head>\n<body>\n")
	buf.Write(content.Bytes())
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

var htmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func htmlEscape(s string) string {
	return htmlReplacer.Replace(s)
}
