// Package report renders eligibility reports to disk.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ppiankov/intake/internal/model"
)

const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// ErrNotAssessed is returned for records without an eligibility assessment
var ErrNotAssessed = errors.New("record has no assessment")

// Generator writes the Markdown, HTML and JSON artifacts for a record
type Generator struct {
	outputDir string
	format    string
	markdown  goldmark.Markdown
	now       func() time.Time
}

// NewGenerator creates a generator writing into outputDir. The primary
// artifact returned in the handle is the one matching format.
func NewGenerator(outputDir, format string) (*Generator, error) {
	switch format {
	case "":
		format = FormatHTML
	case FormatHTML, FormatMarkdown, FormatJSON:
	case "md":
		format = FormatMarkdown
	default:
		return nil, fmt.Errorf("unsupported report format: %q", format)
	}
	if outputDir == "" {
		outputDir = "."
	}

	return &Generator{
		outputDir: outputDir,
		format:    format,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.Table)),
		now:       time.Now,
	}, nil
}

// Document is the JSON form of a report
type Document struct {
	ID          string             `json:"id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Client      model.IntakeRecord `json:"client"`
}

// Generate renders rec and writes every artifact. The record must be assessed.
func (g *Generator) Generate(ctx context.Context, rec model.IntakeRecord) (model.ReportHandle, error) {
	if !rec.IsAssessed() {
		return model.ReportHandle{}, ErrNotAssessed
	}
	if err := ctx.Err(); err != nil {
		return model.ReportHandle{}, err
	}

	generatedAt := g.now().UTC()
	id := uuid.NewString()
	base := filepath.Join(g.outputDir, FileBase(rec.DisplayName(), generatedAt))

	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return model.ReportHandle{}, fmt.Errorf("create output dir: %w", err)
	}

	md := RenderMarkdown(rec, generatedAt)

	var html bytes.Buffer
	if err := g.markdown.Convert([]byte(md), &html); err != nil {
		return model.ReportHandle{}, fmt.Errorf("render html: %w", err)
	}

	doc, err := json.MarshalIndent(Document{ID: id, GeneratedAt: generatedAt, Client: rec}, "", "  ")
	if err != nil {
		return model.ReportHandle{}, fmt.Errorf("render json: %w", err)
	}

	artifacts := []struct {
		format string
		path   string
		data   []byte
	}{
		{FormatMarkdown, base + ".md", []byte(md)},
		{FormatHTML, base + ".html", wrapHTML(rec.DisplayName(), html.Bytes())},
		{FormatJSON, base + ".json", doc},
	}

	handle := model.ReportHandle{ID: id, CreatedAt: generatedAt}
	for _, a := range artifacts {
		if err := os.WriteFile(a.path, a.data, 0o644); err != nil {
			removeArtifacts(handle.Artifacts)
			return model.ReportHandle{}, fmt.Errorf("write %s report: %w", a.format, err)
		}
		handle.Artifacts = append(handle.Artifacts, a.path)
		if a.format == g.format {
			handle.Path = a.path
			handle.ContentType = ContentType(a.path)
		}
	}

	return handle, nil
}

// removeArtifacts deletes the files of a report that could not be completed
func removeArtifacts(paths []string) {
	for _, path := range paths {
		_ = os.Remove(path)
	}
}

// FileBase returns the report file name without extension:
// eligibility_report_<Name_With_Underscores>_<YYYYMMDD_HHMMSS>
func FileBase(name string, at time.Time) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r == '/' || r == '\\' || r == ':' || r == 0:
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(name))
	if safe == "" {
		safe = "Unknown"
	}
	return fmt.Sprintf("eligibility_report_%s_%s", safe, at.Format("20060102_150405"))
}

// ContentType maps an artifact path to its MIME type
func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// RenderMarkdown renders the human-readable report body
func RenderMarkdown(rec model.IntakeRecord, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString("# SHS Eligibility Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", generatedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Client Information\n\n")
	b.WriteString("| Field | Value |\n")
	b.WriteString("|-------|-------|\n")
	fmt.Fprintf(&b, "| Name | %s |\n", cell(rec.DisplayName()))
	fmt.Fprintf(&b, "| Age | %s |\n", intOrNA(rec.Age))
	fmt.Fprintf(&b, "| Medicaid Status | %s |\n", yesNo(rec.MedicaidStatus))
	fmt.Fprintf(&b, "| Disability Type | %s |\n", cell(strOrNA(rec.DisabilityType)))
	fmt.Fprintf(&b, "| Housing Status | %s |\n\n", cell(strOrNA(rec.HousingStatus)))

	b.WriteString("## Eligibility Assessment\n\n")
	fmt.Fprintf(&b, "**Eligible:** %s\n\n", yesNo(rec.Eligible))
	fmt.Fprintf(&b, "**Score:** %s\n\n", intOrNA(rec.EligibilityScore))

	b.WriteString("### Reasons\n\n")
	if len(rec.EligibilityReasons) == 0 {
		b.WriteString("_No qualifying factors identified._\n")
	}
	for _, r := range rec.EligibilityReasons {
		fmt.Fprintf(&b, "- %s\n", r)
	}

	return b.String()
}

func wrapHTML(title string, body []byte) []byte {
	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>Eligibility Report: %s</title>\n", htmlEscape(title))
	b.WriteString("</head>\n<body>\n")
	b.Write(body)
	b.WriteString("</body>\n</html>\n")
	return b.Bytes()
}

var htmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func htmlEscape(s string) string {
	return htmlReplacer.Replace(s)
}

// cell keeps a value from breaking the table layout
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func yesNo(b *bool) string {
	switch {
	case b == nil:
		return "N/A"
	case *b:
		return "YES"
	default:
		return "NO"
	}
}

func intOrNA(i *int) string {
	if i == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *i)
}

func strOrNA(s *string) string {
	if s == nil {
		return "N/A"
	}
	return *s
}
