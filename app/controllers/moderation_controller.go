package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/AlumniConnect/YearbookConnect/app/models"
	"github.com/AlumniConnect/YearbookConnect/app/repository"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/pipeline"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/usercontext"
)

var validReportTargets = map[string]bool{
	models.ReportTargetYearbook: true,
	models.ReportTargetPage:     true,
	models.ReportTargetFace:     true,
	models.ReportTargetClaim:    true,
}

var validReportPriorities = map[string]bool{
	models.ReportPriorityLow:    true,
	models.ReportPriorityNormal: true,
	models.ReportPriorityHigh:   true,
	models.ReportPriorityUrgent: true,
}

var validReportStatuses = map[string]bool{
	models.ReportStatusOpen:      true,
	models.ReportStatusInReview:  true,
	models.ReportStatusResolved:  true,
	models.ReportStatusDismissed: true,
}

var validActions = map[string]bool{
	models.ActionApprove: true,
	models.ActionWarn:    true,
	models.ActionDismiss: true,
}

// HandleCreateReport accepts a user report about problematic content
func HandleCreateReport(c *fiber.Ctx) error {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req struct {
		TargetKind string `json:"target_kind"`
		TargetID   uint   `json:"target_id"`
		Reason     string `json:"reason"`
		Details    string `json:"details"`
		Priority   string `json:"priority"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if !validReportTargets[req.TargetKind] || req.TargetID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "target_kind and target_id are required"})
	}
	if strings.TrimSpace(req.Reason) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reason is required"})
	}
	if req.Priority == "" {
		req.Priority = models.ReportPriorityNormal
	}
	if !validReportPriorities[req.Priority] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid priority"})
	}

	ipv4, ipv6 := GetClientIP(c)
	reporterID := user.UserID
	report := models.ModerationReport{
		ReporterID:   &reporterID,
		TargetKind:   req.TargetKind,
		TargetID:     req.TargetID,
		Reason:       strings.TrimSpace(req.Reason),
		Details:      req.Details,
		Priority:     req.Priority,
		ReporterIPv4: ipv4,
		ReporterIPv6: ipv6,
	}
	if err := repository.GetGlobalRepositories().Moderation.CreateReport(&report); err != nil {
		log.Errorf("[Moderation] Failed to create report: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.Status(fiber.StatusCreated).JSON(report)
}

// HandleListReports is the moderator work queue, urgent first
func HandleListReports(c *fiber.Ctx) error {
	status := c.Query("status")
	if status != "" && !validReportStatuses[status] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid status filter"})
	}
	priority := c.Query("priority")
	if priority != "" && !validReportPriorities[priority] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid priority filter"})
	}

	offset, limit := parsePagination(c, 50, 200)
	filter := repository.ReportFilter{
		Status:   status,
		Priority: priority,
		Offset:   offset,
		Limit:    limit,
	}
	reports, total, err := repository.GetGlobalRepositories().Moderation.ListReports(filter)
	if err != nil {
		log.Errorf("[Moderation] Failed to list reports: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{
		"reports": reports,
		"total":   total,
		"offset":  offset,
		"limit":   limit,
	})
}

// HandleBatchUpdateReports applies one status/assignment change to many reports
func HandleBatchUpdateReports(c *fiber.Ctx) error {
	var req struct {
		IDs          []uint `json:"ids"`
		Status       string `json:"status"`
		AssignedToID *uint  `json:"assigned_to_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if len(req.IDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ids are required"})
	}
	if req.Status != "" && !validReportStatuses[req.Status] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid status"})
	}

	updated, err := repository.GetGlobalRepositories().Moderation.BatchUpdateReports(req.IDs, req.Status, req.AssignedToID)
	if err != nil {
		log.Errorf("[Moderation] Batch update failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{"updated": updated})
}

// HandleUpdateReport updates a single report's status, priority, or assignee
func HandleUpdateReport(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid report id"})
	}

	var req struct {
		Status       string `json:"status"`
		Priority     string `json:"priority"`
		AssignedToID *uint  `json:"assigned_to_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Status != "" && !validReportStatuses[req.Status] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid status"})
	}
	if req.Priority != "" && !validReportPriorities[req.Priority] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid priority"})
	}

	repo := repository.GetGlobalRepositories().Moderation
	report, err := repo.GetReportByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	if req.Status != "" {
		report.Status = req.Status
	}
	if req.Priority != "" {
		report.Priority = req.Priority
	}
	if req.AssignedToID != nil {
		report.AssignedToID = req.AssignedToID
	}
	if err := repo.UpdateReport(report); err != nil {
		log.Errorf("[Moderation] Failed to update report %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(report)
}

// HandleRecordAction appends a moderator action to a report's log and
// moves the report to the status the action implies.
func HandleRecordAction(c *fiber.Ctx) error {
	moderator := usercontext.GetUserContext(c)

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid report id"})
	}

	var req struct {
		Action string `json:"action"`
		Note   string `json:"note"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if !validActions[req.Action] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "action must be approve, warn, or dismiss"})
	}

	action, err := repository.GetGlobalRepositories().Moderation.RecordAction(uint(id), moderator.UserID, req.Action, req.Note)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		log.Errorf("[Moderation] Failed to record action on report %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.Status(fiber.StatusCreated).JSON(action)
}

// HandleApproveClaim approves a pending identity claim. The first
// approval stamps the target; later approvals on the same target fail.
func HandleApproveClaim(c *fiber.Ctx) error {
	moderator := usercontext.GetUserContext(c)

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid claim id"})
	}

	claim, err := repository.GetGlobalRepositories().Claim.Approve(uint(id), moderator.UserID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		case errors.Is(err, models.ErrClaimNotPending):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, models.ErrTargetAlreadyClaimed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		log.Errorf("[Moderation] Failed to approve claim %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(claim)
}

// HandleRejectClaim rejects a pending identity claim with a reason
func HandleRejectClaim(c *fiber.Ctx) error {
	moderator := usercontext.GetUserContext(c)

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid claim id"})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	claim, err := repository.GetGlobalRepositories().Claim.Reject(uint(id), moderator.UserID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		case errors.Is(err, models.ErrClaimNotPending):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		log.Errorf("[Moderation] Failed to reject claim %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(claim)
}

// HandleQuarantineYearbook pulls a yearbook out of circulation
func HandleQuarantineYearbook(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	if uuid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "uuid missing"})
	}

	repo := repository.GetGlobalRepositories().Yearbook
	yearbook, err := repo.GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if yearbook.Status == models.YearbookStatusQuarantined {
		return c.JSON(fiber.Map{"uuid": uuid, "status": yearbook.Status})
	}

	if err := repo.Quarantine(yearbook.ID); err != nil {
		log.Errorf("[Moderation] Failed to quarantine yearbook %s: %v", uuid, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	_ = pipeline.SetStage(uuid, pipeline.STAGE_FLAGGED)

	return c.JSON(fiber.Map{"uuid": uuid, "status": models.YearbookStatusQuarantined})
}

// HandleListPendingClaims is the moderator claim queue, oldest first
func HandleListPendingClaims(c *fiber.Ctx) error {
	offset, limit := parsePagination(c, 50, 200)
	claims, total, err := repository.GetGlobalRepositories().Claim.ListPending(offset, limit)
	if err != nil {
		log.Errorf("[Moderation] Failed to list pending claims: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{
		"claims": claims,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}
