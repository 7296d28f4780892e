package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kairos-dev/kairos/internal/engine"
	"github.com/kairos-dev/kairos/internal/proof"
)

// writeAPIError maps an engine.APIError to its declared HTTP status, or
// falls back to 500 for anything else.
func writeAPIError(c *gin.Context, err error) {
	var apiErr *engine.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error_code": apiErr.Code, "message": apiErr.Message, "items": apiErr.Items})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error_code": "INTERNAL", "message": err.Error()})
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
	Space string `json:"space"`
}

func handleSearch(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error_code": "INVALID_INPUT", "message": err.Error()})
			return
		}
		resp, err := eng.Search(c.Request.Context(), req.Query, req.Space)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

type uriRequest struct {
	URI   string `json:"uri" binding:"required"`
	Space string `json:"space"`
}

func handleBegin(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req uriRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error_code": "INVALID_INPUT", "message": err.Error()})
			return
		}
		resp, err := eng.Begin(c.Request.Context(), req.URI, req.Space)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

type nextRequest struct {
	URI      string          `json:"uri" binding:"required"`
	Space    string          `json:"space"`
	Solution *proof.Solution `json:"solution"`
}

func handleNext(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req nextRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error_code": "INVALID_INPUT", "message": err.Error()})
			return
		}
		resp, err := eng.Next(c.Request.Context(), req.URI, req.Solution, req.Space)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

type attestRequest struct {
	URI          string   `json:"uri" binding:"required"`
	Outcome      string   `json:"outcome" binding:"required"`
	Message      string   `json:"message"`
	QualityBonus *float64 `json:"quality_bonus"`
	ModelID      string   `json:"model_id"`
	Space        string   `json:"space"`
}

func handleAttest(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req attestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error_code": "INVALID_INPUT", "message": err.Error()})
			return
		}
		resp, err := eng.Attest(c.Request.Context(), req.URI, req.Outcome, req.Message, req.QualityBonus, req.ModelID, req.Space)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

type mintRequest struct {
	Markdown    string `json:"markdown" binding:"required"`
	ModelID     string `json:"model_id"`
	ForceUpdate bool   `json:"force_update"`
	Space       string `json:"space"`
}

func handleMint(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req mintRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error_code": "INVALID_INPUT", "message": err.Error()})
			return
		}
		resp, err := eng.Mint(c.Request.Context(), req.Markdown, req.ModelID, req.ForceUpdate, req.Space)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

type updateItemRequest struct {
	URI   string    `json:"uri" binding:"required"`
	Text  *string   `json:"text"`
	Label *string   `json:"label"`
	Tags  *[]string `json:"tags"`
}

type updateRequest struct {
	Items []updateItemRequest `json:"items" binding:"required"`
	Space string              `json:"space"`
}

func handleUpdate(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error_code": "INVALID_INPUT", "message": err.Error()})
			return
		}
		items := make([]engine.UpdateItem, 0, len(req.Items))
		for _, i := range req.Items {
			item := engine.UpdateItem{URI: i.URI, Text: i.Text, Label: i.Label}
			if i.Tags != nil {
				item.HasTags = true
				item.Tags = *i.Tags
			}
			items = append(items, item)
		}
		resp, err := eng.Update(c.Request.Context(), items, req.Space)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

type deleteRequest struct {
	URIs  []string `json:"uris" binding:"required"`
	Space string   `json:"space"`
}

func handleDelete(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req deleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error_code": "INVALID_INPUT", "message": err.Error()})
			return
		}
		resp, err := eng.Delete(c.Request.Context(), req.URIs, req.Space)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
