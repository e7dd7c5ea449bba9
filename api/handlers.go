package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/difyvoice/pkg/llm"
	"github.com/papercomputeco/difyvoice/pkg/storage"
)

// maxListLimit caps the limit query parameter.
const maxListLimit = 1000

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListMetricsResponse is returned by GET /v1/metrics.
type ListMetricsResponse struct {
	Count   int                      `json:"count"`
	Metrics []*llm.CompletionMetrics `json:"metrics"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListMetrics returns recorded metrics, newest first.
func (s *Server) handleListMetrics(c *fiber.Ctx) error {
	opts := storage.ListOptions{
		Label: c.Query("label"),
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxListLimit {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must be between 1 and 1000"})
		}
		opts.Limit = limit
	}

	records, err := s.driver.List(c.Context(), opts)
	if err != nil {
		s.logger.Error("failed to list metrics", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list metrics"})
	}

	if records == nil {
		records = []*llm.CompletionMetrics{}
	}

	return c.JSON(ListMetricsResponse{
		Count:   len(records),
		Metrics: records,
	})
}

// handleMetricsStats returns aggregates, optionally for a single label.
func (s *Server) handleMetricsStats(c *fiber.Ctx) error {
	stats, err := s.driver.Stats(c.Context(), c.Query("label"))
	if err != nil {
		s.logger.Error("failed to compute metrics stats", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to compute stats"})
	}

	return c.JSON(stats)
}

// handleGetMetrics returns a single record by request ID.
func (s *Server) handleGetMetrics(c *fiber.Ctx) error {
	requestID := c.Params("request_id")
	if requestID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "request_id parameter required"})
	}

	record, err := s.driver.Get(c.Context(), requestID)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "metrics record not found"})
		}
		s.logger.Error("failed to get metrics", "request_id", requestID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to get metrics"})
	}

	return c.JSON(record)
}
