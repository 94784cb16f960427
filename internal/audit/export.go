package audit

import (
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"

	id "famledger/pkg/domain"
)

// exportPage renders a self-contained HTML document for offline review.
// Styling stays inline so the export has no external fetches.
var exportPage = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Audit Log — {{.FamilyID}}</title>
<style>
body { font-family: -apple-system, Helvetica, Arial, sans-serif; margin: 2rem; color: #1a1a2e; }
h1 { font-size: 1.4rem; }
.meta { color: #667; font-size: 0.85rem; margin-bottom: 2rem; }
.entry { border: 1px solid #ddd; border-radius: 6px; padding: 1rem; margin-bottom: 1rem; }
.entry h2 { font-size: 1rem; margin: 0 0 0.25rem 0; }
.badge { display: inline-block; padding: 0.1rem 0.5rem; border-radius: 4px; font-size: 0.75rem; font-weight: 600; color: #fff; }
.badge.INFO { background: #8a8f98; }
.badge.LOW { background: #4f9d69; }
.badge.MEDIUM { background: #d9a43a; }
.badge.HIGH { background: #d9663a; }
.badge.CRITICAL { background: #c0273c; }
.impacts { color: #884; font-size: 0.8rem; }
.who { color: #445; font-size: 0.85rem; }
table { border-collapse: collapse; margin-top: 0.75rem; width: 100%; }
th, td { border: 1px solid #e2e2e2; padding: 0.35rem 0.6rem; text-align: left; font-size: 0.85rem; }
th { background: #f4f4f7; }
</style>
</head>
<body>
<h1>Audit Log</h1>
<div class="meta">Family {{.FamilyID}} · generated {{.GeneratedAt}} · {{.Count}} entries</div>
{{range .Entries}}
<div class="entry">
<h2>{{.Summary}} <span class="badge {{.Severity}}">{{.Severity}}</span></h2>
<div class="impacts">{{.Impacts}}</div>
<div class="who">{{.When}} · {{.Action}} · actor {{.Actor}}{{if .Device}} · {{.Device}}{{end}}{{if .IP}} · {{.IP}}{{end}}</div>
{{if .Changes}}
<table>
<tr><th>Field</th><th>{{.BeforeHeader}}</th><th>After</th></tr>
{{range .Changes}}<tr><td>{{.Field}}</td><td>{{.Before}}</td><td>{{.After}}</td></tr>
{{end}}</table>
{{end}}
</div>
{{end}}
</body>
</html>
`))

type exportData struct {
	FamilyID    string
	GeneratedAt string
	Count       int
	Entries     []exportEntry
}

type exportEntry struct {
	Summary      template.HTML
	Severity     Severity
	Impacts      string
	When         string
	Action       string
	Actor        string
	Device       string
	IP           string
	BeforeHeader string
	Changes      []FieldChange
}

// RenderExport produces the HTML export of a family trail. The diff for each
// entry is computed here, on read, from the stored snapshots.
func RenderExport(familyID id.FamilyID, entries []Entry, generatedAt time.Time) ([]byte, error) {
	data := exportData{
		FamilyID:    familyID.String(),
		GeneratedAt: generatedAt.UTC().Format("Jan 2, 2006 15:04 MST"),
		Count:       len(entries),
		Entries:     make([]exportEntry, 0, len(entries)),
	}

	for _, e := range entries {
		beforeHeader := "Before"
		if IsInitialCreation(e.BeforeState) {
			beforeHeader = "Initial Values"
		}
		data.Entries = append(data.Entries, exportEntry{
			Summary:      template.HTML(MarkdownToHTML(html.EscapeString(e.HumanSummary))),
			Severity:     e.Severity,
			Impacts:      impactLine(e),
			When:         e.CreatedAt.UTC().Format("Jan 2, 2006 15:04:05 MST"),
			Action:       e.Action,
			Actor:        e.ActorID.String(),
			Device:       e.DeviceInfo,
			IP:           e.IPAddress,
			BeforeHeader: beforeHeader,
			Changes:      ComputeDiff(e.BeforeState, e.AfterState),
		})
	}

	var b strings.Builder
	if err := exportPage.Execute(&b, data); err != nil {
		return nil, fmt.Errorf("render audit export: %w", err)
	}
	return []byte(b.String()), nil
}

func impactLine(e Entry) string {
	var impacts []string
	if e.AffectsMoney {
		impacts = append(impacts, "money")
	}
	if e.AffectsStreaks {
		impacts = append(impacts, "streaks")
	}
	if e.AffectsRules {
		impacts = append(impacts, "rules")
	}
	if len(impacts) == 0 {
		return ""
	}
	return "Affects: " + strings.Join(impacts, ", ")
}
