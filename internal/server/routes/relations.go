package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/diwan-erp/correspondence/internal/queue"
	"github.com/diwan-erp/correspondence/internal/server/middleware"
	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
	pgxcorpus "github.com/diwan-erp/correspondence/pkg/corpus/pgx"
	"github.com/diwan-erp/correspondence/pkg/logger"
	"github.com/diwan-erp/correspondence/pkg/relate"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type refreshResponse struct {
	Success       bool               `json:"success"`
	Queued        bool               `json:"queued,omitempty"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	Relations     []common.Candidate `json:"relations,omitempty"`
	Count         int                `json:"count"`
}

// RefreshRelationsHandler recomputes and persists a letter's Auto relations.
// With ?async=true the work is handed to the worker instead; the save path
// in the ERP uses that so it never waits on the embedding backend.
func RefreshRelationsHandler(c echo.Context) error {
	ref, err := bindLetterRef(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App

	if c.QueryParam("async") == "true" {
		correlationID, err := gonanoid.New()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}

		msg := queue.LetterSavedMsg{
			Direction:     string(ref.Direction),
			LetterID:      ref.ID,
			CorrelationID: correlationID,
		}
		msgBytes, err := json.Marshal(msg)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		if err := queue.PublishFIFO(app.Queue, queue.LetterSavedQueue, msgBytes); err != nil {
			logger.Error("[API] Failed to queue refresh", "letter", ref.ID, "direction", ref.Direction, "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to queue refresh"})
		}

		return c.JSON(http.StatusAccepted, refreshResponse{
			Success:       true,
			Queued:        true,
			CorrelationID: correlationID,
		})
	}

	ctx := c.Request().Context()
	store := pgxcorpus.NewStore(app.DBConn)
	engine := relate.NewEngine(store, app.Embedder)

	result, err := engine.RefreshRelations(ctx, ref)
	if err != nil {
		if errors.Is(err, corpus.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Letter not found"})
		}
		logger.Error("[API] Relation refresh failed", "letter", ref.ID, "direction", ref.Direction, "err", err)
		return c.JSON(http.StatusOK, refreshResponse{Success: false})
	}

	return c.JSON(http.StatusOK, refreshResponse{
		Success:   true,
		Relations: result.Relations,
		Count:     result.Count,
	})
}

// PreviewRelationsHandler computes relation candidates for a letter payload
// that may not be saved yet. Nothing is written.
func PreviewRelationsHandler(c echo.Context) error {
	type previewParams struct {
		Direction     string   `param:"direction" validate:"required,oneof=incoming outgoing"`
		ID            string   `json:"id"`
		Subject       string   `json:"subject"`
		Correspondent string   `json:"correspondent"`
		Summary       string   `json:"summary"`
		Body          string   `json:"body"`
		OCRText       string   `json:"ocr_text"`
		Date          string   `json:"date"`
		Topics        []string `json:"topics"`
	}

	params := new(previewParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	var date *time.Time
	if params.Date != "" {
		parsed, err := parseLetterDate(params.Date)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid date"})
		}
		date = &parsed
	}

	letter := common.Letter{
		ID:            params.ID,
		Direction:     common.Direction(params.Direction),
		Subject:       params.Subject,
		Correspondent: params.Correspondent,
		Summary:       params.Summary,
		Body:          params.Body,
		OCRText:       params.OCRText,
		Date:          date,
		Topics:        params.Topics,
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	store := pgxcorpus.NewStore(app.DBConn)
	engine := relate.NewEngine(store, app.Embedder)

	result := engine.PreviewRelations(ctx, letter)

	return c.JSON(http.StatusOK, refreshResponse{
		Success:   true,
		Relations: result.Relations,
		Count:     result.Count,
	})
}

func parseLetterDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
