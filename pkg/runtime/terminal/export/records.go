package export

import (
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/de-tools/compliance-engine/pkg/models/store"
)

const recordsTemplate = `{{range .}}{{.EngineRecordedTime}}  {{.AccountID}}  {{.ConfigRuleName}}  {{.ResourceType}}/{{.ResourceID}}  {{.ComplianceType}}{{if .WhitelistedComplianceType}} ({{.WhitelistedComplianceType}}){{end}}
  {{.Annotation}}
{{else}}No compliance events found.
{{end}}`

const statsTemplate = `Records: {{.RecordsCount}}
Last recorded: {{if .LastRecordedTime}}{{.LastRecordedTime.Format "2006-01-02 15:04:05"}}{{else}}never{{end}}
`

const auditsTemplate = `{{range .}}{{.FinishedAt.Format "2006-01-02 15:04:05"}}  {{.AccountID}}  {{.ComplianceType}}  rules={{.RulesAudited}} records={{.Records}}{{if .Annotation}}
  {{.Annotation}}{{end}}
{{else}}No audit runs found.
{{end}}`

// RecordWriter prints stored records as plain text, one entry per block.
type RecordWriter struct {
	writer    io.Writer
	templates *template.Template
}

func NewRecordWriter(writer io.Writer) *RecordWriter {
	if writer == nil {
		writer = os.Stdout
	}
	t := template.Must(template.New("records").Parse(recordsTemplate))
	template.Must(t.New("stats").Parse(statsTemplate))
	template.Must(t.New("audits").Parse(auditsTemplate))
	return &RecordWriter{writer: writer, templates: t}
}

func (w *RecordWriter) Records(records []store.ComplianceRecord) error {
	return w.execute("records", records)
}

func (w *RecordWriter) Stats(stats *store.RecordStats) error {
	return w.execute("stats", stats)
}

func (w *RecordWriter) Audits(runs []store.AuditRun) error {
	return w.execute("audits", runs)
}

func (w *RecordWriter) execute(name string, data any) error {
	if err := w.templates.ExecuteTemplate(w.writer, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}
