// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/staledoc/services/staledoc/lint"
	"github.com/AleutianAI/staledoc/services/staledoc/signature"
	"github.com/AleutianAI/staledoc/services/staledoc/telemetry"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeBodyTooLarge   = "BODY_TOO_LARGE"
	CodeRateLimited    = "RATE_LIMITED"
	CodeScanFailed     = "SCAN_FAILED"
	CodeCanceled       = "CANCELED"
)

// ErrorResponse is the body of every non-2xx response except scan failures.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// CheckRequest is the body of POST /v1/check.
type CheckRequest struct {
	// Path labels the source in diagnostics. It is never read from disk.
	Path string `json:"path" binding:"required,max=4096"`

	// Source is the whole-file Python source.
	Source string `json:"source"`

	// Strategy overrides the server strategy: "tree" or "lexer".
	Strategy string `json:"strategy" binding:"omitempty,oneof=tree lexer"`
}

// CheckResponse is the result of POST /v1/check.
type CheckResponse struct {
	RequestID  string             `json:"request_id"`
	Path       string             `json:"path"`
	Strategy   signature.Strategy `json:"strategy"`
	Compliant  bool               `json:"compliant"`
	Functions  int                `json:"functions"`
	Violations []lint.Violation   `json:"violations"`

	// Error is set with status 422 when the source could not be scanned to
	// the end. Violations found before the failure are still listed.
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string             `json:"status"`
	Version  string             `json:"version"`
	Strategy signature.Strategy `json:"strategy"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Strategy: s.runner.Strategy(),
	})
}

// handleCheck handles POST /v1/check.
//
// Response:
//
//	200 OK: CheckResponse, compliant or not
//	400 Bad Request: malformed body or unknown strategy
//	413 Request Entity Too Large: body above max_body_bytes
//	422 Unprocessable Entity: CheckResponse with Error set
//	429 Too Many Requests: rate limited
func (s *Server) handleCheck(c *gin.Context) {
	requestID := c.GetString(requestIDKey)
	ctx := c.Request.Context()
	logger := telemetry.LoggerWithTrace(ctx, s.logger).With(
		slog.String("request_id", requestID),
		slog.String("handler", "handleCheck"),
	)

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("request body too large", slog.Int64("limit", tooLarge.Limit))
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:     "request body too large",
				Code:      CodeBodyTooLarge,
				RequestID: requestID,
			})
			return
		}
		logger.Warn("invalid request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     err.Error(),
			Code:      CodeInvalidRequest,
			RequestID: requestID,
		})
		return
	}

	strategy := s.runner.Strategy()
	if req.Strategy != "" {
		parsed, err := signature.ParseStrategy(req.Strategy)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidRequest, RequestID: requestID})
			return
		}
		strategy = parsed
	}

	res, err := s.runner.CheckSourceWith(ctx, []byte(req.Source), req.Path, strategy)
	resp := CheckResponse{
		RequestID:  requestID,
		Path:       req.Path,
		Strategy:   strategy,
		Functions:  res.Functions,
		Violations: res.Violations,
	}

	switch {
	case err == nil:
		resp.Compliant = res.Compliant()
		logger.Debug("check served",
			slog.String("path", req.Path),
			slog.Int("functions", res.Functions),
			slog.Int("violations", len(res.Violations)),
		)
		c.JSON(http.StatusOK, resp)

	case ctx.Err() != nil:
		c.JSON(499, ErrorResponse{Error: err.Error(), Code: CodeCanceled, RequestID: requestID})

	default:
		resp.Error = err.Error()
		resp.Code = CodeScanFailed
		c.JSON(http.StatusUnprocessableEntity, resp)
	}
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
