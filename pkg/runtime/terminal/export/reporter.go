package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

type TableConfig struct {
	ResourceWidth   int
	TypeWidth       int
	OrderedWidth    int
	AnnotationWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		ResourceWidth:   40,
		TypeWidth:       28,
		OrderedWidth:    20,
		AnnotationWidth: 60,
	}
}

// Reporter renders a report as one fixed-width table per section.
type Reporter struct {
	writer io.Writer
	config TableConfig
}

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

const reportTemplate = `
{{.Title}}{{if .TestMode}} [test mode, nothing submitted]{{end}}

Account: {{.Account}}
Generated: {{.GeneratedAt.Format "2006-01-02 15:04:05"}}
{{range .Sections}}
=== {{.Title}} ===
{{range $key, $value := .Summary}}{{$key}}: {{$value}}
{{end}}{{if .Rows}}
{{separator}}
{{header}}
{{separator}}
{{range .Rows}}{{row .}}
{{end}}{{separator}}
{{end}}{{end}}`

func (c *Reporter) Handle(report *domain.Report) error {
	cfg := c.config
	line := func(resource, resourceType, ordered, annotation string) string {
		return fmt.Sprintf("| %-*s | %-*s | %-*s | %-*s |",
			cfg.ResourceWidth, clip(resource, cfg.ResourceWidth),
			cfg.TypeWidth, clip(resourceType, cfg.TypeWidth),
			cfg.OrderedWidth, ordered,
			cfg.AnnotationWidth, clip(annotation, cfg.AnnotationWidth))
	}
	funcMap := template.FuncMap{
		"header": func() string {
			return line("Resource", "Type", "Ordered", "Annotation")
		},
		"row": func(r domain.ReportRow) string {
			return line(r.ResourceID, r.ResourceType, r.Ordered.UTC().Format(time.RFC3339), r.Annotation)
		},
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+%s+%s+",
				strings.Repeat("-", cfg.ResourceWidth+2),
				strings.Repeat("-", cfg.TypeWidth+2),
				strings.Repeat("-", cfg.OrderedWidth+2),
				strings.Repeat("-", cfg.AnnotationWidth+2))
		},
	}

	t, err := template.New("report").Funcs(funcMap).Parse(reportTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return t.Execute(c.writer, report)
}

func clip(s string, width int) string {
	if len(s) <= width || width < 4 {
		return s
	}
	return s[:width-3] + "..."
}
