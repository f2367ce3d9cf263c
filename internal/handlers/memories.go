package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/memora/backend/internal/middleware"
	"github.com/memora/backend/internal/models"
	"github.com/memora/backend/internal/services"
	"github.com/memora/backend/pkg/utils"
)

const mediaField = "media"

type MemoriesHandler struct {
	Memories     *services.MemoryService
	MaxFileBytes int64
}

func NewMemoriesHandler(memories *services.MemoryService, maxFileBytes int64) *MemoriesHandler {
	return &MemoriesHandler{Memories: memories, MaxFileBytes: maxFileBytes}
}

type deletePhotoRequest struct {
	PhotoURL string `json:"photoUrl"`
	Key      string `json:"key"`
}

func (h *MemoriesHandler) Moods(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, models.SuggestedMoods)
}

func (h *MemoriesHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "multipart form with at least one photo is required")
	}

	uploads, err := uploadsFromHeaders(form.File[mediaField], h.MaxFileBytes)
	if err != nil {
		return respondError(c, err, "memory_create_failed")
	}

	input := services.MemoryInput{
		Title:       formValue(form, "title"),
		Description: optionalFormValue(form, "description"),
		Date:        formValue(form, "date"),
		Location:    optionalFormValue(form, "location"),
		Mood:        formValue(form, "mood"),
		Visibility:  formValue(form, "visibility"),
	}

	view, err := h.Memories.Create(requestContext(c), currentUser.ID, input, uploads)
	if err != nil {
		return respondError(c, err, "memory_create_failed")
	}
	return utils.Success(c, fiber.StatusCreated, view)
}

func (h *MemoriesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	views, err := h.Memories.List(requestContext(c), currentUser.ID)
	if err != nil {
		return respondError(c, err, "memory_list_failed")
	}
	return utils.Success(c, fiber.StatusOK, views)
}

func (h *MemoriesHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	memoryID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid memory id")
	}

	view, err := h.Memories.Get(requestContext(c), memoryID, currentUser.ID)
	if err != nil {
		return respondError(c, err, "memory_get_failed")
	}
	return utils.Success(c, fiber.StatusOK, view)
}

func (h *MemoriesHandler) AddPhotos(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	memoryID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid memory id")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "no photos uploaded")
	}

	uploads, err := uploadsFromHeaders(form.File[mediaField], h.MaxFileBytes)
	if err != nil {
		return respondError(c, err, "memory_add_photos_failed")
	}

	view, err := h.Memories.AddPhotos(requestContext(c), memoryID, currentUser.ID, uploads)
	if err != nil {
		return respondError(c, err, "memory_add_photos_failed")
	}
	return utils.Success(c, fiber.StatusOK, view)
}

func (h *MemoriesHandler) DeletePhoto(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	memoryID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid memory id")
	}

	var req deletePhotoRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	view, err := h.Memories.DeletePhoto(requestContext(c), memoryID, currentUser.ID, req.PhotoURL, req.Key)
	if err != nil {
		return respondError(c, err, "memory_delete_photo_failed")
	}
	return utils.Success(c, fiber.StatusOK, view)
}

func (h *MemoriesHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	memoryID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid memory id")
	}

	var input services.MemoryInput
	if err := c.BodyParser(&input); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	view, err := h.Memories.Update(requestContext(c), memoryID, currentUser.ID, input)
	if err != nil {
		return respondError(c, err, "memory_update_failed")
	}
	return utils.Success(c, fiber.StatusOK, view)
}

func (h *MemoriesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	memoryID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid memory id")
	}

	if err := h.Memories.DeleteMemory(requestContext(c), memoryID, currentUser.ID); err != nil {
		return respondError(c, err, "memory_delete_failed")
	}
	return message(c, fiber.StatusOK, "memory and associated photos deleted")
}
