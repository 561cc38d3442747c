package routes

import (
	"errors"
	"net/http"

	"github.com/diwan-erp/correspondence/internal/server/middleware"
	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
	pgxcorpus "github.com/diwan-erp/correspondence/pkg/corpus/pgx"
	"github.com/diwan-erp/correspondence/pkg/relate"

	"github.com/labstack/echo/v4"
)

type letterRefParams struct {
	Direction string `param:"direction" validate:"required,oneof=incoming outgoing"`
	LetterID  string `param:"id" validate:"required"`
}

func bindLetterRef(c echo.Context) (common.Ref, error) {
	params := new(letterRefParams)
	if err := c.Bind(params); err != nil {
		return common.Ref{}, err
	}
	if err := c.Validate(params); err != nil {
		return common.Ref{}, err
	}
	return common.Ref{
		Direction: common.Direction(params.Direction),
		ID:        params.LetterID,
	}, nil
}

func GetLetterHandler(c echo.Context) error {
	ref, err := bindLetterRef(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn
	store := pgxcorpus.NewStore(conn)

	letter, err := store.GetLetter(ctx, ref)
	if err != nil {
		if errors.Is(err, corpus.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Letter not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, letter)
}

func GetSimilarLettersHandler(c echo.Context) error {
	type getSimilarResponse struct {
		Success bool               `json:"success"`
		Similar []common.Candidate `json:"similar"`
		Count   int                `json:"count"`
	}

	ref, err := bindLetterRef(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	store := pgxcorpus.NewStore(app.DBConn)
	engine := relate.NewEngine(store, app.Embedder)

	similar, err := engine.FindSimilar(ctx, ref)
	if err != nil {
		if errors.Is(err, corpus.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Letter not found"})
		}
		return c.JSON(http.StatusOK, getSimilarResponse{Success: false})
	}

	if similar == nil {
		similar = []common.Candidate{}
	}
	return c.JSON(http.StatusOK, getSimilarResponse{
		Success: true,
		Similar: similar,
		Count:   len(similar),
	})
}
