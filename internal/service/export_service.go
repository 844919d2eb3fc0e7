package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
	"github.com/noah-isme/qa-reports-api/pkg/export"
)

const (
	exportPageSize = 200
	exportMaxRows  = 10000
)

// List export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

type exportReportReader interface {
	Get(ctx context.Context, id int64, claims *models.JWTClaims) (*dto.ReportDetail, error)
	List(ctx context.Context, filter models.ReportFilter, claims *models.JWTClaims) ([]dto.ReportResponse, *models.Pagination, error)
}

type tableRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportServiceParams groups the export dependencies. Nil renderers use the defaults.
type ExportServiceParams struct {
	Reports  exportReportReader
	Settings settingsReader
	CSV      tableRenderer
	XLSX     tableRenderer
	PDF      pdfRenderer
	Logger   *zap.Logger
}

// ExportService renders reports as PDF documents and report lists as CSV or XLSX.
type ExportService struct {
	reports  exportReportReader
	settings settingsReader
	tables   map[string]tableRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService wires the renderers to the report service.
func NewExportService(params ExportServiceParams) *ExportService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.CSV == nil {
		params.CSV = export.NewCSVExporter()
	}
	if params.XLSX == nil {
		params.XLSX = export.NewXLSXExporter("Reports")
	}
	if params.PDF == nil {
		params.PDF = export.NewPDFExporter()
	}
	return &ExportService{
		reports:  params.Reports,
		settings: params.Settings,
		tables:   map[string]tableRenderer{FormatCSV: params.CSV, FormatXLSX: params.XLSX},
		pdf:      params.PDF,
		logger:   params.Logger,
		now:      time.Now,
	}
}

var listContentTypes = map[string]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ReportPDF renders a single report with its checklist, photos and summary.
func (s *ExportService) ReportPDF(ctx context.Context, id int64, claims *models.JWTClaims) (*ExportFile, error) {
	if !claims.Can(models.CapExport) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export permission required")
	}
	detail, err := s.reports.Get(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	doc := s.buildDocument(ctx, detail)
	payload, err := s.pdf.Render(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	s.logger.Info("report pdf exported", zap.Int64("report_id", id), zap.String("user_id", claims.UserID), zap.Int("bytes", len(payload)))
	return &ExportFile{
		Filename:    fmt.Sprintf("report_%d_%s.pdf", detail.ID, slugify(detail.SchoolName)),
		ContentType: "application/pdf",
		Data:        payload,
	}, nil
}

// ReportList renders every report matching the filter that the caller may see,
// as CSV (the default) or XLSX. The export stops after exportMaxRows rows.
func (s *ExportService) ReportList(ctx context.Context, filter models.ReportFilter, format string, claims *models.JWTClaims) (*ExportFile, error) {
	if !claims.Can(models.CapExport) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export permission required")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	renderer, ok := s.tables[format]
	if !ok {
		return nil, appErrors.Validation("format", "format must be csv or xlsx")
	}
	dataset := export.Dataset{Headers: []string{
		"ID", "School", "Type", "Inspection Date", "Status", "Overall Rating", "Author", "Previous Report", "Updated At",
	}}
	filter.PageSize = exportPageSize
	for page := 1; ; page++ {
		filter.Page = page
		items, pagination, err := s.reports.List(ctx, filter, claims)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			dataset.Append(reportRow(item))
		}
		if pagination == nil || page >= pagination.TotalPages || len(dataset.Rows) >= exportMaxRows {
			break
		}
	}
	if len(dataset.Rows) > exportMaxRows {
		dataset.Rows = dataset.Rows[:exportMaxRows]
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render "+format)
	}
	s.logger.Info("report list exported", zap.String("format", format), zap.Int("rows", len(dataset.Rows)), zap.String("user_id", claims.UserID))
	return &ExportFile{
		Filename:    fmt.Sprintf("reports_%s.%s", s.now().UTC().Format("20060102_150405"), format),
		ContentType: listContentTypes[format],
		Data:        payload,
	}, nil
}

func reportRow(item dto.ReportResponse) map[string]string {
	previous := ""
	if item.PreviousReportID != nil {
		previous = strconv.FormatInt(*item.PreviousReportID, 10)
	}
	return map[string]string{
		"ID":              strconv.FormatInt(item.ID, 10),
		"School":          item.SchoolName,
		"Type":            item.ReportTypeLabel,
		"Inspection Date": item.InspectionDate,
		"Status":          item.StatusLabel,
		"Overall Rating":  item.OverallRatingLabel,
		"Author":          item.AuthorName,
		"Previous Report": previous,
		"Updated At":      item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *ExportService) buildDocument(ctx context.Context, detail *dto.ReportDetail) export.Document {
	company := ""
	if s.settings != nil {
		company = s.settings.Value(ctx, models.SettingCompanyName)
	}
	doc := export.Document{
		Title:    fmt.Sprintf("%s Report", detail.ReportTypeLabel),
		Subtitle: detail.SchoolName,
		Footer:   fmt.Sprintf("%s - generated %s", company, s.now().UTC().Format("2006-01-02 15:04 MST")),
		Fields: []export.Field{
			{Label: "Report #", Value: strconv.FormatInt(detail.ID, 10)},
			{Label: "Inspection date", Value: detail.InspectionDate},
			{Label: "Status", Value: detail.StatusLabel},
			{Label: "Overall rating", Value: detail.OverallRatingLabel},
			{Label: "Inspector", Value: detail.AuthorName},
		},
	}
	if company != "" {
		doc.Title = fmt.Sprintf("%s - %s", company, doc.Title)
	}
	if detail.School != nil && detail.School.Location != "" {
		doc.Fields = append(doc.Fields, export.Field{Label: "Location", Value: detail.School.Location})
	}
	if detail.PreviousReportID != nil {
		doc.Fields = append(doc.Fields, export.Field{Label: "Previous report", Value: "#" + strconv.FormatInt(*detail.PreviousReportID, 10)})
	}

	if summary := detail.Summary; summary != nil {
		if summary.ExecutiveSummary != "" {
			doc.Blocks = append(doc.Blocks, export.Block{Heading: "Executive Summary", Text: summary.ExecutiveSummary})
		}
		if issues := bulletList(summary.Issues); len(issues) > 0 {
			doc.Blocks = append(doc.Blocks, export.Block{Heading: "Key Issues", Bullets: issues})
		}
	}

	if detail.Responses != nil {
		for _, section := range detail.Responses.Sections {
			table := &export.Dataset{Headers: []string{"Item", "Rating", "Notes"}}
			for _, item := range section.Items {
				table.Append(map[string]string{
					"Item":   humanize(item.Item),
					"Rating": responseLabel(item.Value),
					"Notes":  item.Notes,
				})
			}
			doc.Blocks = append(doc.Blocks, export.Block{Heading: humanize(section.Key), Table: table})
		}
	}

	if detail.Summary != nil && len(detail.Summary.Plan) > 0 {
		table := &export.Dataset{Headers: []string{"Priority", "Timeline", "Action"}}
		for _, item := range detail.Summary.Plan {
			table.Append(map[string]string{"Priority": humanize(item.Priority), "Timeline": item.Timeline, "Action": item.Action})
		}
		doc.Blocks = append(doc.Blocks, export.Block{Heading: "Plan of Improvement", Table: table})
	}

	if detail.ClosingNotes != "" {
		doc.Blocks = append(doc.Blocks, export.Block{Heading: "Closing Notes", Text: detail.ClosingNotes})
	}

	if len(detail.Photos) > 0 {
		photos := make([]string, 0, len(detail.Photos))
		for _, photo := range detail.Photos {
			line := fmt.Sprintf("[%s] %s", humanize(photo.SectionKey), photo.Filename)
			if photo.Caption != "" {
				line += ": " + photo.Caption
			}
			photos = append(photos, line)
		}
		doc.Blocks = append(doc.Blocks, export.Block{Heading: fmt.Sprintf("Photos (%d)", len(photos)), Bullets: photos})
	}
	return doc
}

// bulletList accepts either a list of strings or a list of objects carrying a text-like field.
func bulletList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var text string
		if err := json.Unmarshal(item, &text); err == nil {
			if text = strings.TrimSpace(text); text != "" {
				out = append(out, text)
			}
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		for _, key := range []string{"issue", "description", "text", "title"} {
			if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
				out = append(out, strings.TrimSpace(v))
				break
			}
		}
	}
	return out
}

func responseLabel(value string) string {
	if label := models.Rating(value).Label(); label != "" {
		return label
	}
	return humanize(value)
}

func humanize(key string) string {
	key = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(key))
	if key == "" {
		return ""
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

func slugify(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "school"
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('_')
		}
	}
	result := b.String()
	if len(result) > 60 {
		result = result[:60]
	}
	if result == "" {
		return "school"
	}
	return result
}
