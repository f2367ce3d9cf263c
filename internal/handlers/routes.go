package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/memora/backend/internal/middleware"
)

func RegisterRoutes(app *fiber.App, accounts *AccountsHandler, memories *MemoriesHandler, audit *AuditHandler, auth *middleware.AuthMiddleware) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Post("/signup", accounts.Signup)
	api.Post("/login", accounts.Login)
	api.Get("/verify", accounts.Verify)
	api.Post("/social-login", accounts.SocialLogin)
	api.Post("/forgot-password", accounts.ForgotPassword)
	api.Post("/reset-password", accounts.ResetPassword)

	api.Get("/profile", auth.RequireAuth, accounts.Profile)
	api.Put("/update-name", auth.RequireAuth, accounts.UpdateName)
	api.Put("/update-password", auth.RequireAuth, accounts.UpdatePassword)
	api.Put("/update-avatar", auth.RequireAuth, accounts.UpdateAvatar)
	api.Delete("/delete-account", auth.RequireAuth, accounts.DeleteAccount)
	api.Get("/activity/export", auth.RequireAuth, audit.ExportMyLog)

	memoryRoutes := api.Group("/memories", auth.RequireAuth)
	memoryRoutes.Get("/moods", memories.Moods)
	memoryRoutes.Post("/", memories.Create)
	memoryRoutes.Get("/", memories.List)
	memoryRoutes.Get("/:id", memories.Get)
	memoryRoutes.Put("/:id", memories.Update)
	memoryRoutes.Delete("/:id", memories.Delete)
	memoryRoutes.Post("/:id/photos", memories.AddPhotos)
	memoryRoutes.Delete("/:id/photos", memories.DeletePhoto)
}
