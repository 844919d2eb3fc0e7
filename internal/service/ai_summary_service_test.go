package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

type generatorStub struct {
	configured bool
	response   string
	err        error
	prompts    []string
}

func (g *generatorStub) Configured(ctx context.Context) bool { return g.configured }

func (g *generatorStub) GenerateJSON(ctx context.Context, system, prompt string, out interface{}) error {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return g.err
	}
	return json.Unmarshal([]byte(g.response), out)
}

type extractorStub struct {
	text  string
	err   error
	calls int
}

func (e *extractorStub) ExtractText(ctx context.Context, content []byte, mimeType string) (string, error) {
	e.calls++
	return e.text, e.err
}

type togglesStub map[string]bool

func (t togglesStub) Enabled(ctx context.Context, key string) bool { return t[key] }

type aiFixture struct {
	svc       *AISummaryService
	generator *generatorStub
	extractor *extractorStub
	summaries *summaryRepoStub
	reports   *reportRepoStub
	checklist *checklistRepoStub
}

func newAIFixture(t *testing.T, enabled bool) *aiFixture {
	t.Helper()
	fx := &aiFixture{
		generator: &generatorStub{configured: true},
		extractor: &extractorStub{},
		summaries: &summaryRepoStub{},
		reports:   newReportRepoStub(),
		checklist: newChecklistRepoStub(),
	}
	schools := &schoolRepoStub{schools: map[int64]models.School{
		5: {ID: 5, Name: "Maple Street", Location: "Springfield", Status: models.SchoolStatusActive},
	}}
	fx.svc = NewAISummaryService(AISummaryServiceParams{
		Summaries: fx.summaries,
		Reports:   fx.reports,
		Schools:   schools,
		Checklist: NewChecklistService(fx.checklist, false, nil),
		Generator: fx.generator,
		Extractor: fx.extractor,
		Toggles:   togglesStub{models.SettingEnableAI: enabled},
		Now:       func() time.Time { return fixtureNow },
	})
	return fx
}

func TestAISummaryGenerate(t *testing.T) {
	fx := newAIFixture(t, true)
	fx.reports.seed(models.Report{ID: 2, SchoolID: 5, AuthorID: officerClaims.UserID, ReportType: models.ReportTypeTier1, Status: models.StatusDraft,
		InspectionDate: "2024-03-01", OverallRating: models.RatingMeets, PreviousReportID: int64Ptr(1)})
	fx.summaries.items = map[int64]models.AISummary{1: {ReportID: 1, ExecutiveSummary: "Last time the fence was broken."}}
	require.NoError(t, fx.checklist.Upsert(context.Background(), 2, []models.ChecklistResponse{{SectionKey: "safety", ItemKey: "exits", Value: "no", Notes: "blocked"}}))
	fx.generator.response = `{"executive_summary":" Good visit. ","issues":[{"section":"safety","item":"exits","finding":"blocked"}],
		"plan_of_improvement":[{"timeline":"1 week","action":"Clear exits"},{"priority":"immediate","action":""}],"comparison":null}`

	summary, err := fx.svc.Generate(context.Background(), 2, officerClaims)
	require.NoError(t, err)
	assert.Equal(t, "Good visit.", summary.ExecutiveSummary)
	assert.Equal(t, []models.RemediationItem{{Priority: models.DefaultPlanPriority, Timeline: "1 week", Action: "Clear exits"}}, summary.Plan)
	assert.JSONEq(t, `{}`, string(summary.Comparison))
	assert.Equal(t, fixtureNow, summary.GeneratedAt)

	require.Len(t, fx.generator.prompts, 1)
	prompt := fx.generator.prompts[0]
	assert.Contains(t, prompt, "Maple Street")
	assert.Contains(t, prompt, "- exits: no (blocked)")
	assert.Contains(t, prompt, "Last time the fence was broken.")
	assert.Contains(t, fx.summaries.items, int64(2))
}

func TestAISummaryGenerateProviderFailureKeepsPrevious(t *testing.T) {
	fx := newAIFixture(t, true)
	fx.reports.seed(models.Report{ID: 2, SchoolID: 5, AuthorID: officerClaims.UserID, ReportType: models.ReportTypeTier1})
	fx.summaries.items = map[int64]models.AISummary{2: {ReportID: 2, ExecutiveSummary: "previous"}}
	fx.generator.err = errors.New("gemini http 500")

	_, err := fx.svc.Generate(context.Background(), 2, officerClaims)
	assert.Equal(t, appErrors.ErrDependency.Code, errorCode(err))
	assert.Equal(t, "previous", fx.summaries.items[2].ExecutiveSummary)
}

func TestAISummaryGateChecks(t *testing.T) {
	fx := newAIFixture(t, false)
	fx.reports.seed(models.Report{ID: 2, SchoolID: 5, AuthorID: officerClaims.UserID, ReportType: models.ReportTypeTier1})

	_, err := fx.svc.Generate(context.Background(), 2, officerClaims)
	assert.Equal(t, appErrors.ErrFeatureDisabled.Code, errorCode(err))

	fx = newAIFixture(t, true)
	_, err = fx.svc.Generate(context.Background(), 2, managerClaims)
	assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(err))

	_, err = fx.svc.Generate(context.Background(), 404, officerClaims)
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))

	fx.generator.configured = false
	_, err = fx.svc.Generate(context.Background(), 2, officerClaims)
	assert.Equal(t, appErrors.ErrFeatureDisabled.Code, errorCode(err))
	assert.Empty(t, fx.generator.prompts)
}

func TestAISummaryMergePlanWithoutSummaryIsNoop(t *testing.T) {
	fx := newAIFixture(t, true)

	require.NoError(t, fx.svc.MergePlan(context.Background(), 3, []dto.PlanItem{{Action: "x"}}))
	assert.Empty(t, fx.summaries.items)
}

func TestAISummaryParseDocument(t *testing.T) {
	fx := newAIFixture(t, true)
	fx.generator.response = `{"school_name":"maple street","inspection_date":"2024-02-30","report_type":"tier1",
		"responses":[{"section_key":"safety","item_key":"exits","value":"yes"}],"closing_notes":"fine"}`

	parsed, err := fx.svc.ParseDocument(context.Background(), Document{Filename: "visit.txt", Data: []byte("Maple Street visit notes")}, officerClaims)
	require.NoError(t, err)
	assert.Equal(t, "plain_text", parsed.Source)
	assert.Equal(t, "", parsed.InspectionDate)
	assert.Equal(t, "tier1", parsed.ReportType)
	require.NotNil(t, parsed.SchoolID)
	assert.Equal(t, int64(5), *parsed.SchoolID)
	assert.Zero(t, fx.extractor.calls)
	assert.Equal(t, "Maple Street visit notes", fx.generator.prompts[0])

	fx.extractor.text = strings.Repeat("a", maxDocumentText+10)
	parsed, err = fx.svc.ParseDocument(context.Background(), Document{Filename: "visit.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}, officerClaims)
	require.NoError(t, err)
	assert.Equal(t, "document_ai", parsed.Source)
	assert.Len(t, fx.generator.prompts[1], maxDocumentText)
}

func TestAISummaryParseDocumentFailures(t *testing.T) {
	fx := newAIFixture(t, true)

	_, err := fx.svc.ParseDocument(context.Background(), Document{Filename: "empty.pdf"}, officerClaims)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))

	fx.extractor.err = errors.New("processor offline")
	_, err = fx.svc.ParseDocument(context.Background(), Document{Filename: "a.pdf", Data: []byte("%PDF")}, officerClaims)
	assert.Equal(t, appErrors.ErrDependency.Code, errorCode(err))

	fx.svc.extractor = nil
	_, err = fx.svc.ParseDocument(context.Background(), Document{Filename: "a.pdf", Data: []byte("%PDF")}, officerClaims)
	assert.Equal(t, appErrors.ErrFeatureDisabled.Code, errorCode(err))
}
