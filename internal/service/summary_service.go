package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/spec-kit/enrollment-service/internal/domain"
	"github.com/spec-kit/enrollment-service/internal/repository"
	apperrors "github.com/spec-kit/enrollment-service/pkg/util"
)

// SummaryService renders a completed enrollment into a downloadable PDF.
type SummaryService struct {
	sessions repository.SessionRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewSummaryService constructs the generator.
func NewSummaryService(sessions repository.SessionRepository, logger *zap.Logger) *SummaryService {
	return &SummaryService{sessions: sessions, logger: logger, now: time.Now}
}

// GeneratePDF renders the session's collected data. Unknown sessions are a
// not-found error; incomplete sessions a retryable conflict.
func (s *SummaryService) GeneratePDF(ctx context.Context, sessionID string) ([]byte, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("session", map[string]any{"session_id": sessionID})
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !session.IsComplete {
		return nil, apperrors.NewConflict("enrollment not yet complete", map[string]any{"session_id": sessionID})
	}

	data, err := s.render(session)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Debug("summary generated",
		zap.String("session_id", sessionID), zap.Int("bytes", len(data)))
	return data, nil
}

func (s *SummaryService) render(session *domain.EnrollmentSession) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Membership Enrollment Summary", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "Membership Enrollment Summary", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated on %s", s.now().UTC().Format("January 2, 2006")), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Session ID: %s", session.SessionID), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	collected := session.Collected
	s.section(pdf, "Personal Information", [][2]string{
		{"Full Name", orPlaceholder(collected.Name)},
		{"Email Address", orPlaceholder(collected.Email)},
		{"Company", orPlaceholder(collected.Company)},
		{"Job Title", orPlaceholder(collected.JobTitle)},
	})
	s.section(pdf, "Membership Details", [][2]string{
		{"Program Type", orPlaceholder(collected.ProgramType)},
		{"How did you hear about us", orPlaceholder(collected.ReferralSource)},
	})
	s.section(pdf, "Enrollment Status", [][2]string{
		{"Status", "Completed"},
		{"Completion Date", session.UpdatedAt.UTC().Format("January 2, 2006")},
	})

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 5, "This document was automatically generated by the membership enrollment system.", "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, "For questions or support, please contact our membership team.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render summary pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *SummaryService) section(pdf *fpdf.Fpdf, title string, rows [][2]string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 9, title, "B", 1, "L", false, 0, "")
	pdf.Ln(1)
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(70, 7, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 7, row[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func orPlaceholder(value string) string {
	if value == "" {
		return "Not provided"
	}
	return value
}
