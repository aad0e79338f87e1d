package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/cancer-check/internal/auth"
	"github.com/example/cancer-check/internal/classifier"
	"github.com/example/cancer-check/internal/decision"
	"github.com/example/cancer-check/internal/imageprocessor"
	"github.com/example/cancer-check/internal/logging"
	"github.com/example/cancer-check/internal/usecase"
)

// MaxUploadSize bounds the accepted image size in bytes.
const MaxUploadSize = 8 << 20

// multipartOverhead leaves room for form boundaries and headers on top of the
// image itself.
const multipartOverhead = 64 << 10

// Analyzer is the use case surface the HTTP layer depends on.
type Analyzer interface {
	Analyze(ctx context.Context, req usecase.AnalysisRequest) (*usecase.Analysis, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

// RegisterRoutes wires the HTTP handlers to the Gin router. authMiddleware may
// be nil to serve /analyze without authentication.
func RegisterRoutes(router *gin.Engine, uc Analyzer, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", func(c *gin.Context) {
		summary, err := uc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	handlers := []gin.HandlerFunc{}
	if authMiddleware != nil {
		handlers = append(handlers, authMiddleware)
	}
	handlers = append(handlers, analyzeHandler(uc))
	router.POST("/analyze", handlers...)
}

func analyzeHandler(uc Analyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+multipartOverhead)

		file, err := c.FormFile("image")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
			return
		}
		if file.Size > MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
			return
		}
		if !imageprocessor.IsImage(data) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{
				"error":        "unsupported image type",
				"content_type": imageprocessor.Sniff(data),
			})
			return
		}

		callerID, _ := auth.CallerID(c.Request.Context())
		analysis, err := uc.Analyze(c.Request.Context(), usecase.AnalysisRequest{
			CallerID:  callerID,
			ImageName: file.Filename,
			Image:     data,
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": logging.Cause(err).Error()})
			return
		}

		c.JSON(http.StatusOK, analysisResponse(analysis))
	}
}

func statusFor(err error) int {
	var procErr *classifier.ImageProcessingError
	switch {
	case errors.Is(err, classifier.ErrModelInitialization):
		return http.StatusServiceUnavailable
	case errors.As(err, &procErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func analysisResponse(a *usecase.Analysis) gin.H {
	body := gin.H{
		"request_id":        a.RequestID,
		"sha1":              a.ImageDigest,
		"decision":          a.Decision.Kind.String(),
		"message":           a.Decision.Message,
		"classifications":   a.Result.Classifications,
		"inference_time_ms": a.Result.InferenceTime.Milliseconds(),
	}
	if a.Decision.Kind == decision.Positive && a.Decision.Finding != nil {
		body["label"] = a.Decision.Finding.Label
		body["score"] = a.Decision.Finding.Score
		body["summary"] = a.Decision.Finding.Summary()
	}
	return body
}
