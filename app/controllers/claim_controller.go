package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/AlumniConnect/YearbookConnect/app/models"
	"github.com/AlumniConnect/YearbookConnect/app/repository"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/database"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/usercontext"
)

// HandleCreateClaim submits an identity claim against a detected face or
// a recognized name. Exactly one target must be given.
func HandleCreateClaim(c *fiber.Ctx) error {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req struct {
		PageFaceID    *uint `json:"page_face_id"`
		PageNameOCRID *uint `json:"page_name_ocr_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	claim := models.Claim{
		ClaimantID:    user.UserID,
		PageFaceID:    req.PageFaceID,
		PageNameOCRID: req.PageNameOCRID,
	}
	if err := claim.Validate(); err != nil {
		if errors.Is(err, models.ErrClaimTargetInvalid) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": models.ErrClaimTargetInvalid.Error()})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid claim"})
	}

	// The target must exist before a moderator ever sees the claim.
	db := database.GetDB()
	if claim.PageFaceID != nil {
		if err := db.First(&models.PageFace{}, *claim.PageFaceID).Error; err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown face"})
		}
	} else {
		if err := db.First(&models.PageNameOCR{}, *claim.PageNameOCRID).Error; err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown name"})
		}
	}

	if err := repository.GetGlobalRepositories().Claim.Create(&claim); err != nil {
		if errors.Is(err, models.ErrClaimTargetInvalid) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Errorf("[Claim] Failed to create claim: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.Status(fiber.StatusCreated).JSON(claim)
}

// HandleListOwnClaims returns the caller's claims, newest first
func HandleListOwnClaims(c *fiber.Ctx) error {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	offset, limit := parsePagination(c, 20, 100)
	claims, err := repository.GetGlobalRepositories().Claim.ListByClaimant(user.UserID, offset, limit)
	if err != nil {
		log.Errorf("[Claim] Failed to list claims for user %d: %v", user.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{"claims": claims})
}

// HandleListNotifications returns the caller's notifications, newest first
func HandleListNotifications(c *fiber.Ctx) error {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	offset, limit := parsePagination(c, 20, 100)
	var notifications []models.Notification
	err := database.GetDB().Where("user_id = ?", user.UserID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&notifications).Error
	if err != nil {
		log.Errorf("[Claim] Failed to list notifications for user %d: %v", user.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{"notifications": notifications})
}

// HandleMarkNotificationRead marks one of the caller's notifications read
func HandleMarkNotificationRead(c *fiber.Ctx) error {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid notification id"})
	}

	db := database.GetDB()
	var notification models.Notification
	if err := db.Where("id = ? AND user_id = ?", id, user.UserID).First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if err := notification.MarkAsRead(db); err != nil {
		log.Errorf("[Claim] Failed to mark notification %d read: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(notification)
}
