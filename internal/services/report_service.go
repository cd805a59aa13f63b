package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
)

const exportSheetName = "Attempts"

// exportPageSize bounds one repository page while streaming attempts
// into the workbook.
const exportPageSize = 500

type reportService struct {
	repo              repositories.Repository
	db                *gorm.DB
	logger            *slog.Logger
	assessmentService AssessmentService
}

func NewReportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, assessmentService AssessmentService) ReportService {
	return &reportService{
		repo:              repo,
		db:                db,
		logger:            logger,
		assessmentService: assessmentService,
	}
}

// ExportAttempts builds an XLSX workbook listing every attempt on the
// assessment, one row per attempt. Only the assessment owner and admins
// may export.
func (s *reportService) ExportAttempts(ctx context.Context, assessmentID uint, userID string) ([]byte, string, error) {
	s.logger.Info("Exporting attempts", "assessment_id", assessmentID, "user_id", userID)

	assessment, err := s.repo.Assessment().GetByID(ctx, s.db, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrAssessmentNotFound
		}
		return nil, "", fmt.Errorf("failed to get assessment: %w", err)
	}

	canAccess, err := s.assessmentService.CanAccess(ctx, assessmentID, userID)
	if err != nil {
		return nil, "", err
	}
	if !canAccess {
		return nil, "", NewPermissionError(userID, assessmentID, "assessment", "export", "not owner or insufficient permissions")
	}

	file := excelize.NewFile()
	defer file.Close()
	file.SetSheetName(file.GetSheetName(0), exportSheetName)

	if err := s.writeHeader(file); err != nil {
		return nil, "", err
	}

	row := 2
	offset := 0
	for {
		attempts, _, err := s.repo.Attempt().GetByAssessment(ctx, s.db, assessmentID, repositories.AttemptFilters{
			Limit:     exportPageSize,
			Offset:    offset,
			SortBy:    "started_at",
			SortOrder: "asc",
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to list attempts: %w", err)
		}
		if len(attempts) == 0 {
			break
		}

		names := s.studentNames(ctx, attempts)
		for _, attempt := range attempts {
			if err := s.writeAttemptRow(file, row, attempt, names[attempt.StudentID]); err != nil {
				return nil, "", err
			}
			row++
		}

		if len(attempts) < exportPageSize {
			break
		}
		offset += exportPageSize
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize workbook: %w", err)
	}

	filename := fmt.Sprintf("assessment_%d_attempts_%s.xlsx",
		assessment.ID, time.Now().Format("2006-01-02"))

	s.logger.Info("Attempts exported",
		"assessment_id", assessmentID, "rows", row-2, "filename", filename)
	return buf.Bytes(), filename, nil
}

var exportHeaders = []string{
	"Student", "Student ID", "Attempt #", "Status", "Score", "Max Score",
	"Percentage", "Passed", "Time Spent (s)", "End Reason", "Started At", "Completed At",
}

func (s *reportService) writeHeader(file *excelize.File) error {
	for i, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := file.SetCellValue(exportSheetName, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err := file.SetCellStyle(exportSheetName, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	return file.SetColWidth(exportSheetName, "A", "L", 18)
}

func (s *reportService) writeAttemptRow(file *excelize.File, row int, attempt *models.AssessmentAttempt, studentName string) error {
	startedAt := ""
	if attempt.StartedAt != nil {
		startedAt = attempt.StartedAt.Format(time.RFC3339)
	}
	completedAt := ""
	if attempt.CompletedAt != nil {
		completedAt = attempt.CompletedAt.Format(time.RFC3339)
	}
	endReason := ""
	if attempt.EndReason != nil {
		endReason = *attempt.EndReason
	}

	values := []interface{}{
		studentName,
		attempt.StudentID,
		attempt.AttemptNumber,
		string(attempt.Status),
		attempt.Score,
		attempt.MaxScore,
		attempt.Percentage,
		attempt.Passed,
		attempt.TimeSpent,
		endReason,
		startedAt,
		completedAt,
	}

	for i, value := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("failed to compute cell: %w", err)
		}
		if err := file.SetCellValue(exportSheetName, cell, value); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}
	return nil
}

// studentNames resolves display names for one page of attempts. Lookup
// failures degrade to an empty name rather than failing the export.
func (s *reportService) studentNames(ctx context.Context, attempts []*models.AssessmentAttempt) map[string]string {
	seen := make(map[string]bool, len(attempts))
	ids := make([]string, 0, len(attempts))
	for _, attempt := range attempts {
		if !seen[attempt.StudentID] {
			seen[attempt.StudentID] = true
			ids = append(ids, attempt.StudentID)
		}
	}

	names := make(map[string]string, len(ids))
	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to resolve student names for export", "error", err)
		return names
	}
	for _, user := range users {
		names[user.ID] = user.FullName
	}
	return names
}
