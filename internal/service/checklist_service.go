package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

const maxChecklistKeyLength = 100

type checklistRepository interface {
	Upsert(ctx context.Context, reportID int64, rows []models.ChecklistResponse) error
	ListByReport(ctx context.Context, reportID int64) ([]models.ChecklistResponse, error)
}

// ChecklistService merges checklist answers into a report and reads them back grouped by section.
type ChecklistService struct {
	repo   checklistRepository
	strict bool
	logger *zap.Logger
}

// NewChecklistService constructs the service. In strict mode a single malformed entry rejects the batch.
func NewChecklistService(repo checklistRepository, strict bool, logger *zap.Logger) *ChecklistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChecklistService{repo: repo, strict: strict, logger: logger}
}

// Prepare normalises entries into rows. Duplicate keys collapse onto the first position with the
// last submitted value. Malformed entries are skipped, or rejected in strict mode.
func (s *ChecklistService) Prepare(entries []dto.ChecklistEntry) ([]models.ChecklistResponse, int, error) {
	rows := make([]models.ChecklistResponse, 0, len(entries))
	positions := make(map[[2]string]int, len(entries))
	skipped := 0
	for i, entry := range entries {
		section, item, value, notes := entry.Normalize()
		if reason := malformedReason(section, item); reason != "" {
			if s.strict {
				return nil, 0, appErrors.Validation(fmt.Sprintf("responses[%d]", i), reason)
			}
			skipped++
			continue
		}
		row := models.ChecklistResponse{SectionKey: section, ItemKey: item, Value: value, Notes: plainText(notes)}
		key := [2]string{section, item}
		if pos, ok := positions[key]; ok {
			rows[pos] = row
			continue
		}
		positions[key] = len(rows)
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

func malformedReason(section, item string) string {
	switch {
	case section == "":
		return "section_key is required"
	case item == "":
		return "item_key is required"
	case len(section) > maxChecklistKeyLength || len(item) > maxChecklistKeyLength:
		return fmt.Sprintf("keys are limited to %d characters", maxChecklistKeyLength)
	}
	return ""
}

// Save persists prepared rows for a report.
func (s *ChecklistService) Save(ctx context.Context, reportID int64, rows []models.ChecklistResponse) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.repo.Upsert(ctx, reportID, rows); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save checklist responses")
	}
	return nil
}

// BulkSave prepares and persists entries. Keys not present in entries are left untouched.
func (s *ChecklistService) BulkSave(ctx context.Context, reportID int64, entries []dto.ChecklistEntry) (*dto.BulkSaveResult, error) {
	rows, skipped, err := s.Prepare(entries)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, reportID, rows); err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.logger.Info("skipped malformed checklist entries", zap.Int64("report_id", reportID), zap.Int("skipped", skipped))
	}
	return &dto.BulkSaveResult{Saved: len(rows), Skipped: skipped}, nil
}

// Grouped returns the answers of a report keyed by section in first-seen order.
func (s *ChecklistService) Grouped(ctx context.Context, reportID int64) (*models.GroupedChecklist, error) {
	rows, err := s.repo.ListByReport(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load checklist responses")
	}
	return models.GroupChecklist(rows), nil
}
