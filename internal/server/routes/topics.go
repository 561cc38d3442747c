package routes

import (
	"errors"
	"net/http"

	"github.com/diwan-erp/correspondence/internal/server/middleware"
	"github.com/diwan-erp/correspondence/pkg/classify"
	"github.com/diwan-erp/correspondence/pkg/corpus"
	pgxcorpus "github.com/diwan-erp/correspondence/pkg/corpus/pgx"

	"github.com/labstack/echo/v4"
)

// ClassifyLetterHandler suggests topics for a stored letter without
// assigning them.
func ClassifyLetterHandler(c echo.Context) error {
	type classifyResponse struct {
		Success bool     `json:"success"`
		Topics  []string `json:"topics"`
	}

	ref, err := bindLetterRef(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn
	classifier := classify.NewClassifier(pgxcorpus.NewStore(conn))

	topics, err := classifier.ClassifyLetter(ctx, ref)
	if err != nil {
		if errors.Is(err, corpus.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Letter not found"})
		}
		return c.JSON(http.StatusOK, classifyResponse{Success: false, Topics: []string{}})
	}

	if topics == nil {
		topics = []string{}
	}
	return c.JSON(http.StatusOK, classifyResponse{Success: true, Topics: topics})
}

// ApplyTopicsHandler assigns topics to a letter. With an empty topic list
// the classifier's suggestions are applied instead.
func ApplyTopicsHandler(c echo.Context) error {
	type applyTopicsBody struct {
		Topics []string `json:"topics"`
	}

	type applyTopicsResponse struct {
		Success bool     `json:"success"`
		Added   int      `json:"added"`
		Topics  []string `json:"topics"`
	}

	ref, err := bindLetterRef(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	body := new(applyTopicsBody)
	if err := c.Bind(body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn
	classifier := classify.NewClassifier(pgxcorpus.NewStore(conn))

	topics := body.Topics
	if len(topics) == 0 {
		topics, err = classifier.ClassifyLetter(ctx, ref)
		if err != nil {
			if errors.Is(err, corpus.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "Letter not found"})
			}
			return c.JSON(http.StatusOK, applyTopicsResponse{Success: false, Topics: []string{}})
		}
	}

	added, err := classifier.ApplyTopics(ctx, ref, topics)
	if err != nil {
		return c.JSON(http.StatusOK, applyTopicsResponse{Success: false, Topics: []string{}})
	}

	if topics == nil {
		topics = []string{}
	}
	return c.JSON(http.StatusOK, applyTopicsResponse{
		Success: true,
		Added:   added,
		Topics:  topics,
	})
}

func GetTopicsHandler(c echo.Context) error {
	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn
	store := pgxcorpus.NewStore(conn)

	topics, err := store.ListTopics(ctx, false)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, topics)
}

// EditTopicHandler updates a topic's parent, keywords, rule or
// auto-categorization flag. Parent changes are cycle-checked first.
func EditTopicHandler(c echo.Context) error {
	type editTopicParams struct {
		Name           string  `param:"name" validate:"required"`
		Parent         *string `json:"parent"`
		Keywords       *string `json:"keywords"`
		RuleJSON       *string `json:"rule_json"`
		AutoCategorize *bool   `json:"auto_categorize"`
	}

	params := new(editTopicParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn
	store := pgxcorpus.NewStore(conn)

	topic, err := store.GetTopic(ctx, params.Name)
	if err != nil {
		if errors.Is(err, corpus.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Topic not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	if params.Parent != nil {
		hierarchy := classify.NewHierarchy(store)
		if err := hierarchy.ValidateParent(ctx, topic.Name, *params.Parent); err != nil {
			if errors.Is(err, classify.ErrOwnParent) || errors.Is(err, classify.ErrHierarchyCycle) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		topic.Parent = *params.Parent
	}
	if params.Keywords != nil {
		topic.Keywords = *params.Keywords
	}
	if params.RuleJSON != nil {
		topic.RuleJSON = *params.RuleJSON
	}
	if params.AutoCategorize != nil {
		topic.AutoCategorize = *params.AutoCategorize
	}

	if err := store.UpdateTopic(ctx, *topic); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, topic)
}
