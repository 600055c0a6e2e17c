package handlers

import (
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/enrollment-service/internal/api/dto"
	"github.com/spec-kit/enrollment-service/internal/service"
	apperrors "github.com/spec-kit/enrollment-service/pkg/util"
)

// DatadumpHandler manages the ticket import surface.
type DatadumpHandler struct {
	ingest  *service.IngestService
	tickets *service.TicketQueryService
}

// NewDatadumpHandler constructs handler.
func NewDatadumpHandler(ingest *service.IngestService, tickets *service.TicketQueryService) *DatadumpHandler {
	return &DatadumpHandler{ingest: ingest, tickets: tickets}
}

// Import POST /api/zendesk/datadump.
func (h *DatadumpHandler) Import(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("multipart field 'file' required", nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable upload", nil)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return apperrors.NewValidationError("unreadable upload", nil)
	}

	result, err := h.ingest.Ingest(c.UserContext(), fileHeader.Filename, data)
	if err != nil {
		return err
	}

	recordErrors := make([]dto.RecordErrorResponse, 0, len(result.Errors))
	for _, recErr := range result.Errors {
		recordErrors = append(recordErrors, dto.RecordErrorResponse{
			RecordIndex: recErr.Index,
			Reason:      recErr.Reason,
			Warning:     recErr.Warning,
		})
	}
	return c.JSON(dto.DatadumpResponse{
		Message:       "Datadump imported successfully",
		ImportedCount: result.Imported,
		SkippedCount:  result.Skipped,
		Errors:        recordErrors,
	})
}

// ListTickets GET /api/zendesk/tickets.
func (h *DatadumpHandler) ListTickets(c *fiber.Ctx) error {
	limit := parseIntQuery(c.Query("limit"), 50)
	offset := parseIntQuery(c.Query("offset"), 0)

	tickets, total, err := h.tickets.List(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(dto.TicketListResponse{Tickets: items, Total: total})
}

func parseIntQuery(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}
