package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

const (
	maxDocumentText = 30000

	summarySystemPrompt = `You are a quality assurance reviewer for early education schools.
Answer with a JSON object with the keys executive_summary (string), issues (array of
{section, item, finding}), plan_of_improvement (array of {priority, timeline, action}
where priority is one of immediate, short_term, ongoing) and comparison (object with
improved, declined and unchanged string arrays, empty when there is no previous report).`

	parseSystemPrompt = `You convert inspection documents into structured data.
Answer with a JSON object with the keys school_name, inspection_date (YYYY-MM-DD or empty),
report_type (tier1, tier1_tier2 or new_acquisition), responses (array of
{section_key, item_key, value, notes} where value is yes, no, sometimes or na) and closing_notes.`
)

type summaryRepository interface {
	GetByReport(ctx context.Context, reportID int64) (*models.AISummary, error)
	Upsert(ctx context.Context, summary *models.AISummary) error
}

type summaryReportReader interface {
	GetByID(ctx context.Context, id int64) (*models.Report, error)
}

type summarySchoolReader interface {
	GetByID(ctx context.Context, id int64) (*models.School, error)
	List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error)
}

type jsonGenerator interface {
	Configured(ctx context.Context) bool
	GenerateJSON(ctx context.Context, system, prompt string, out interface{}) error
}

type textExtractor interface {
	ExtractText(ctx context.Context, content []byte, mimeType string) (string, error)
}

type featureToggles interface {
	Enabled(ctx context.Context, key string) bool
}

// Document is an uploaded file handed to ParseDocument.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AISummaryServiceParams groups constructor dependencies.
type AISummaryServiceParams struct {
	Summaries summaryRepository
	Reports   summaryReportReader
	Schools   summarySchoolReader
	Checklist *ChecklistService
	Generator jsonGenerator
	Extractor textExtractor
	Toggles   featureToggles
	Audit     auditWriter
	Logger    *zap.Logger
	Now       func() time.Time
}

// AISummaryService produces executive summaries and structures uploaded documents.
type AISummaryService struct {
	summaries summaryRepository
	reports   summaryReportReader
	schools   summarySchoolReader
	checklist *ChecklistService
	generator jsonGenerator
	extractor textExtractor
	toggles   featureToggles
	audit     auditWriter
	logger    *zap.Logger
	now       func() time.Time
}

// NewAISummaryService constructs the adapter.
func NewAISummaryService(params AISummaryServiceParams) *AISummaryService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &AISummaryService{
		summaries: params.Summaries,
		reports:   params.Reports,
		schools:   params.Schools,
		checklist: params.Checklist,
		generator: params.Generator,
		extractor: params.Extractor,
		toggles:   params.Toggles,
		audit:     params.Audit,
		logger:    params.Logger,
		now:       params.Now,
	}
}

type generatedSummary struct {
	ExecutiveSummary string                   `json:"executive_summary"`
	Issues           json.RawMessage          `json:"issues"`
	Plan             []models.RemediationItem `json:"plan_of_improvement"`
	Comparison       json.RawMessage          `json:"comparison"`
}

// Get returns the stored summary of a report, or nil when none was generated.
func (s *AISummaryService) Get(ctx context.Context, reportID int64) (*models.AISummary, error) {
	summary, err := s.summaries.GetByReport(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load summary")
	}
	return summary, nil
}

// Generate asks the provider for a fresh summary and replaces the stored one. Provider
// failures leave the previous summary in place.
func (s *AISummaryService) Generate(ctx context.Context, reportID int64, claims *models.JWTClaims) (*models.AISummary, error) {
	if err := s.authorize(ctx, claims); err != nil {
		return nil, err
	}
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	if !canViewReport(claims, report) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view this report")
	}

	prompt, err := s.summaryPrompt(ctx, report)
	if err != nil {
		return nil, err
	}
	var out generatedSummary
	if err := s.generator.GenerateJSON(ctx, summarySystemPrompt, prompt, &out); err != nil {
		s.logger.Warn("summary generation failed", zap.Int64("report_id", reportID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "AI provider request failed")
	}

	summary := &models.AISummary{
		ReportID:         report.ID,
		ExecutiveSummary: strings.TrimSpace(out.ExecutiveSummary),
		Issues:           rawOr(out.Issues, "[]"),
		Comparison:       rawOr(out.Comparison, "{}"),
		Plan:             normalizePlan(out.Plan),
		GeneratedAt:      s.now().UTC(),
	}
	if err := s.summaries.Upsert(ctx, summary); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save summary")
	}
	if s.audit != nil {
		recordAudit(ctx, s.audit, s.logger, claims, models.AuditActionSummaryCreate, "report", strconv.FormatInt(report.ID, 10), nil, summary)
	}
	return summary, nil
}

// MergePlan replaces the remediation plan of an existing summary and keeps its narrative.
// Reports without a summary are left alone.
func (s *AISummaryService) MergePlan(ctx context.Context, reportID int64, items []dto.PlanItem) error {
	summary, err := s.Get(ctx, reportID)
	if err != nil || summary == nil {
		return err
	}
	plan := make([]models.RemediationItem, 0, len(items))
	for _, item := range items {
		plan = append(plan, models.RemediationItem{Priority: item.Priority, Timeline: item.Timeline, Action: item.Action})
	}
	summary.Plan = normalizePlan(plan)
	if err := s.summaries.Upsert(ctx, summary); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update remediation plan")
	}
	return nil
}

// ParseDocument extracts text from an uploaded document and structures it into a draft report.
func (s *AISummaryService) ParseDocument(ctx context.Context, doc Document, claims *models.JWTClaims) (*dto.ParsedDocument, error) {
	if err := s.authorize(ctx, claims); err != nil {
		return nil, err
	}
	if len(doc.Data) == 0 {
		return nil, appErrors.Validation("document", "no document provided")
	}

	text, source, err := s.extractText(ctx, doc)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, appErrors.Validation("document", "no text could be extracted from the document")
	}
	if len(text) > maxDocumentText {
		text = text[:maxDocumentText]
	}

	var parsed dto.ParsedDocument
	if err := s.generator.GenerateJSON(ctx, parseSystemPrompt, text, &parsed); err != nil {
		s.logger.Warn("document parsing failed", zap.String("filename", doc.Filename), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "AI provider request failed")
	}
	parsed.Source = source
	if !models.ReportType(parsed.ReportType).Valid() {
		parsed.ReportType = ""
	}
	if _, err := time.Parse(models.DateLayout, parsed.InspectionDate); err != nil {
		parsed.InspectionDate = ""
	}
	if parsed.Responses == nil {
		parsed.Responses = []dto.ChecklistEntry{}
	}
	parsed.SchoolID = s.matchSchool(ctx, parsed.SchoolName)
	return &parsed, nil
}

func (s *AISummaryService) authorize(ctx context.Context, claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if !claims.Can(models.CapUseAI) {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot use AI features")
	}
	if s.toggles != nil && !s.toggles.Enabled(ctx, models.SettingEnableAI) {
		return appErrors.Clone(appErrors.ErrFeatureDisabled, "AI features are disabled")
	}
	if s.generator == nil || !s.generator.Configured(ctx) {
		return appErrors.Clone(appErrors.ErrFeatureDisabled, "AI provider is not configured")
	}
	return nil
}

func (s *AISummaryService) extractText(ctx context.Context, doc Document) (string, string, error) {
	contentType := strings.ToLower(doc.ContentType)
	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".txt", ".md", ".csv":
		return string(doc.Data), "plain_text", nil
	}
	if strings.HasPrefix(contentType, "text/") {
		return string(doc.Data), "plain_text", nil
	}
	if s.extractor == nil {
		return "", "", appErrors.Clone(appErrors.ErrFeatureDisabled, "document extraction is not configured, upload plain text instead")
	}
	text, err := s.extractor.ExtractText(ctx, doc.Data, doc.ContentType)
	if err != nil {
		s.logger.Warn("document extraction failed", zap.String("filename", doc.Filename), zap.Error(err))
		return "", "", appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "document extraction failed")
	}
	return text, "document_ai", nil
}

func (s *AISummaryService) matchSchool(ctx context.Context, name string) *int64 {
	name = strings.TrimSpace(name)
	if name == "" || s.schools == nil {
		return nil
	}
	schools, _, err := s.schools.List(ctx, models.SchoolFilter{Search: name, Page: 1, PageSize: 5})
	if err != nil {
		s.logger.Warn("match parsed school", zap.String("name", name), zap.Error(err))
		return nil
	}
	for _, school := range schools {
		if strings.EqualFold(school.Name, name) {
			id := school.ID
			return &id
		}
	}
	if len(schools) == 1 {
		id := schools[0].ID
		return &id
	}
	return nil
}

func (s *AISummaryService) summaryPrompt(ctx context.Context, report *models.Report) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Report type: %s\n", report.ReportType.Label())
	fmt.Fprintf(&b, "Inspection date: %s\n", report.InspectionDate)
	fmt.Fprintf(&b, "Overall rating: %s\n", report.OverallRating.Label())
	if school, err := s.schools.GetByID(ctx, report.SchoolID); err == nil {
		fmt.Fprintf(&b, "School: %s (%s, %s)\n", school.Name, school.Location, school.Region)
	}
	if report.ClosingNotes != "" {
		fmt.Fprintf(&b, "Inspector notes: %s\n", report.ClosingNotes)
	}

	grouped, err := s.checklist.Grouped(ctx, report.ID)
	if err != nil {
		return "", err
	}
	b.WriteString("\nChecklist:\n")
	for _, section := range grouped.Sections {
		fmt.Fprintf(&b, "[%s]\n", section.Key)
		for _, item := range section.Items {
			fmt.Fprintf(&b, "- %s: %s", item.Item, item.Value)
			if item.Notes != "" {
				fmt.Fprintf(&b, " (%s)", item.Notes)
			}
			b.WriteByte('\n')
		}
	}

	if report.PreviousReportID != nil {
		previous, err := s.Get(ctx, *report.PreviousReportID)
		if err == nil && previous != nil && previous.ExecutiveSummary != "" {
			fmt.Fprintf(&b, "\nPrevious inspection summary:\n%s\n", previous.ExecutiveSummary)
		}
	}
	return b.String(), nil
}

func normalizePlan(items []models.RemediationItem) []models.RemediationItem {
	out := make([]models.RemediationItem, 0, len(items))
	for _, item := range items {
		action := strings.TrimSpace(item.Action)
		if action == "" {
			continue
		}
		priority := strings.TrimSpace(item.Priority)
		if priority == "" {
			priority = models.DefaultPlanPriority
		}
		out = append(out, models.RemediationItem{Priority: priority, Timeline: strings.TrimSpace(item.Timeline), Action: action})
	}
	return out
}

func rawOr(raw json.RawMessage, fallback string) []byte {
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		return []byte(fallback)
	}
	return []byte(raw)
}
