package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowmetric/ingest-gateway/internal/auth"
	"github.com/flowmetric/ingest-gateway/internal/models"
	"github.com/flowmetric/ingest-gateway/internal/pipeline"
	"github.com/flowmetric/ingest-gateway/internal/writer"
)

// maxBatchEvents bounds the number of events per request.
const maxBatchEvents = 1000

// RegisterEventRoutes registers the ingestion-path endpoint.
//
// POST /v1/events
// - Requires a resolved API key or a valid widget token
// - Responds before any store write happens; acceptance means "durably
//   buffered in-process", and flush failures are retried in the background
// - 200 all accepted, 207 mixed, 400 all rejected, 413 oversize body,
//   503 buffer full
func RegisterEventRoutes(r gin.IRoutes, pipe *pipeline.Pipeline, w *writer.Writer, maxBodyBytes int64) {
	r.POST("/events", func(c *gin.Context) {
		authCtx, ok := auth.FromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error: "unauthorized", Code: models.CodeUnauthorized,
			})
			return
		}

		// The size gate runs before any parsing. Content-Length catches the
		// honest case cheaply; MaxBytesReader catches chunked bodies.
		if c.Request.ContentLength > maxBodyBytes {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Error: "request body exceeds batch size ceiling",
				Code:  models.CodePayloadTooLarge,
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

		var req models.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
					Error: "request body exceeds batch size ceiling",
					Code:  models.CodePayloadTooLarge,
				})
				return
			}
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "invalid JSON payload", Code: models.CodeInvalidPayload,
			})
			return
		}

		if len(req.Events) == 0 || len(req.Events) > maxBatchEvents {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "events must contain between 1 and 1000 items",
				Code:  models.CodeInvalidPayload,
			})
			return
		}

		res := pipe.Process(req.Events, authCtx)

		if len(res.Accepted) > 0 {
			if !w.Enqueue(res.Accepted) {
				c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
					Error: "event buffer full, retry later",
					Code:  models.CodeServerBusy,
				})
				return
			}
		}

		rejected := res.Rejected
		if rejected == nil {
			rejected = []models.RejectedEvent{}
		}
		body := models.IngestResponse{
			Accepted: len(res.Accepted),
			Rejected: rejected,
			Warnings: res.Warnings,
		}

		switch {
		case len(res.Rejected) == 0:
			c.JSON(http.StatusOK, body)
		case len(res.Accepted) == 0:
			c.JSON(http.StatusBadRequest, body)
		default:
			c.JSON(http.StatusMultiStatus, body)
		}
	})
}
