package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/memora/backend/internal/services"
	"github.com/memora/backend/pkg/logger"
	"github.com/memora/backend/pkg/utils"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

func getRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestID").(string); ok {
		return id
	}
	return ""
}

// requestContext carries the caller's IP and request ID into service calls
// for audit rows.
func requestContext(c *fiber.Ctx) context.Context {
	return services.WithRequestMeta(c.UserContext(), services.RequestMeta{
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})
}

func message(c *fiber.Ctx, status int, msg string) error {
	return utils.Success(c, status, fiber.Map{"message": msg})
}

// respondError maps service errors onto HTTP statuses. Unknown errors are
// logged under action and reported as 500 without their message.
func respondError(c *fiber.Ctx, err error, action string) error {
	var (
		validationErr *services.ValidationError
		notFoundErr   *services.NotFoundError
		authErr       *services.AuthError
		conflictErr   *services.ConflictError
		storageErr    *services.StorageError
	)

	switch {
	case errors.As(err, &validationErr):
		return utils.Error(c, fiber.StatusBadRequest, validationErr.Error())
	case errors.As(err, &notFoundErr):
		return utils.Error(c, fiber.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &authErr):
		if authErr.Forbidden {
			return utils.Error(c, fiber.StatusForbidden, authErr.Error())
		}
		return utils.Error(c, fiber.StatusUnauthorized, authErr.Error())
	case errors.As(err, &conflictErr):
		return utils.Error(c, fiber.StatusConflict, conflictErr.Error())
	case errors.As(err, &storageErr):
		logError(c, action, err, map[string]interface{}{"op": storageErr.Op, "keys": storageErr.Keys})
		return utils.Error(c, fiber.StatusBadGateway, "storage operation failed")
	default:
		logError(c, action, err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func logError(c *fiber.Ctx, action string, err error, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["path"] = c.Path()
	details["request_id"] = getRequestID(c)

	if userID := logger.GetUserIDFromContext(c); userID != nil {
		logger.ErrorWithUser(*userID, action, err, details)
		return
	}
	logger.Error(action, err, details)
}

// uploadsFromHeaders converts multipart file headers, enforcing the per-file
// size limit.
func uploadsFromHeaders(headers []*multipart.FileHeader, maxBytes int64) ([]services.Upload, error) {
	uploads := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		if maxBytes > 0 && fh.Size > maxBytes {
			return nil, &services.ValidationError{
				Message: fmt.Sprintf("file %s exceeds the %d MB limit", fh.Filename, maxBytes/(1024*1024)),
			}
		}
		uploads = append(uploads, uploadFromHeader(fh))
	}
	return uploads, nil
}

func uploadFromHeader(fh *multipart.FileHeader) services.Upload {
	return services.Upload{
		Filename:    filepath.Base(strings.TrimSpace(fh.Filename)),
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// optionalFormValue returns nil when the field is absent from the form.
func optionalFormValue(form *multipart.Form, key string) *string {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
