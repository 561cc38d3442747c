package server

import (
	"github.com/diwan-erp/correspondence/internal/server/middleware"
	"github.com/diwan-erp/correspondence/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Letter routes
	apiRoutes.GET("/letters/:direction/:id", routes.GetLetterHandler)
	apiRoutes.GET("/letters/:direction/:id/similar", routes.GetSimilarLettersHandler)

	// Relation routes
	apiRoutes.POST("/letters/:direction/:id/relations/refresh", routes.RefreshRelationsHandler)
	apiRoutes.POST("/letters/:direction/relations/preview", routes.PreviewRelationsHandler)

	// Topic routes
	apiRoutes.POST("/letters/:direction/:id/classify", routes.ClassifyLetterHandler)
	apiRoutes.POST("/letters/:direction/:id/topics", routes.ApplyTopicsHandler)
	apiRoutes.GET("/topics", routes.GetTopicsHandler)
	apiRoutes.PATCH("/topics/:name", routes.EditTopicHandler)

	// Attachment routes
	apiRoutes.POST("/letters/:direction/:id/attachments", routes.UploadAttachmentHandler)
	apiRoutes.GET("/letters/:direction/:id/attachments", routes.ListAttachmentsHandler)
	apiRoutes.GET("/letters/:direction/:id/attachments/:key", routes.GetAttachmentLinkHandler)
	apiRoutes.DELETE("/letters/:direction/:id/attachments/:key", routes.DeleteAttachmentHandler)
}
