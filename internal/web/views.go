package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strconv"

	"finsight/internal/analysis"
	"finsight/internal/format"
	"finsight/internal/upload"
)

//go:embed templates
var templateFiles embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"currency": format.Currency,
	"percent":  format.Percent,
	"humanize": format.HumanizeRole,
}).ParseFS(templateFiles, "templates/*.html"))

// previewRowLimit caps the preview table regardless of how many rows the
// analysis service returned.
const previewRowLimit = 5

// pageView selects which of the mutually exclusive views the main region
// shows. Exactly one of Upload and Dashboard is set.
type pageView struct {
	Upload    *uploadView
	Dashboard *dashboardView
}

// uploadView renders the drop zone, optionally with an error line, and in
// dimmed non-interactive form while a submission is in flight.
type uploadView struct {
	Error     string
	ErrorCode string
	Loading   bool
}

type kpiCard struct {
	Label string
	Value string
}

type columnEntry struct {
	Role   string // humanized role
	Source string // CSV column the service matched
}

// dashboardView is the read-only projection of an analysis result.
type dashboardView struct {
	Filename    string
	ColumnCount int
	Cards       []kpiCard
	Columns     []columnEntry
	Headers     []string
	Rows        [][]string
}

// viewFor maps a machine snapshot to its page view.
func viewFor(snap upload.Snapshot) pageView {
	switch snap.Phase {
	case upload.PhaseSuccess:
		return pageView{Dashboard: dashboardFor(snap.Result)}
	case upload.PhaseSubmitting:
		return pageView{Upload: &uploadView{Loading: true}}
	case upload.PhaseFailed:
		return pageView{Upload: &uploadView{
			Error:     snap.Error.Message,
			ErrorCode: snap.Error.Code,
		}}
	default:
		return pageView{Upload: &uploadView{}}
	}
}

// dashboardFor projects a result into display form without mutating it.
func dashboardFor(result *analysis.Result) *dashboardView {
	v := &dashboardView{
		Filename:    result.Filename,
		ColumnCount: len(result.DetectedColumns),
		Cards: []kpiCard{
			{Label: "Revenus totaux", Value: format.Currency(result.KPIs.RevenusTotaux)},
			{Label: "EBITDA", Value: format.Currency(result.KPIs.Ebitda)},
			{Label: "Résultat net", Value: format.Currency(result.KPIs.ResultatNet)},
			{Label: "Free Cash Flow", Value: format.Currency(result.KPIs.FreeCashFlow)},
			{Label: "Marge nette", Value: format.Percent(result.KPIs.MargeNette)},
		},
	}

	roles := make([]string, 0, len(result.DetectedColumns))
	for role := range result.DetectedColumns {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		v.Columns = append(v.Columns, columnEntry{
			Role:   format.HumanizeRole(role),
			Source: result.DetectedColumns[role],
		})
	}

	if len(result.DataPreview) > 0 {
		for key := range result.DataPreview[0] {
			v.Headers = append(v.Headers, key)
		}
		sort.Strings(v.Headers)

		rows := result.DataPreview
		if len(rows) > previewRowLimit {
			rows = rows[:previewRowLimit]
		}
		for _, row := range rows {
			cells := make([]string, len(v.Headers))
			for i, key := range v.Headers {
				cells[i] = cellString(row[key])
			}
			v.Rows = append(v.Rows, cells)
		}
	}

	return v
}

// cellString renders a preview cell. JSON numbers decode as float64; they
// are shown without a trailing ".0" when integral.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// renderPage writes the full page for the given view.
func renderPage(w io.Writer, view pageView) error {
	return templates.ExecuteTemplate(w, "page", view)
}

// renderMain writes only the main region fragment, swapped in place by the
// page script.
func renderMain(w io.Writer, view pageView) error {
	return templates.ExecuteTemplate(w, "main", view)
}
