package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/vision-analysis-go/internal/config"
	apperrors "github.com/anime-shed/vision-analysis-go/internal/errors"
	"github.com/anime-shed/vision-analysis-go/internal/logger"
	"github.com/anime-shed/vision-analysis-go/internal/service"
	"github.com/anime-shed/vision-analysis-go/internal/storage"
	"github.com/anime-shed/vision-analysis-go/pkg/models"
)

const (
	apiVersion = "1.0.0"

	msgNoFileUploaded  = "No file uploaded"
	msgAnalyzeFailed   = "Error analyzing image"
	msgProcessFailed   = "Error processing image"
	msgVerifyFailed    = "Error verifying image text"
	defaultContentType = "application/octet-stream"
)

// NewHandler builds the gin engine serving the image analysis API. metrics
// may be nil, in which case /metrics is not routed.
func NewHandler(svc service.ImageAnalysisService, uploader storage.TemporaryUploader, metrics http.Handler, cfg *config.Config) http.Handler {
	r := gin.Default()

	if cfg.MaxRequestBodySize > 0 {
		r.Use(requestSizeLimiter(cfg.MaxRequestBodySize))
	}

	r.GET("/health", healthCheck)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	api := r.Group("/api/ImageAnalysis")
	api.GET("/analyze", analyzeImage(svc, cfg))
	api.POST("/upload", uploadImage(svc, uploader, cfg))
	api.GET("/verify-text", verifyText(svc, cfg))

	return r
}

func analyzeImage(svc service.ImageAnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, cfg)
		defer cancel()

		imageURL := c.Query("imageUrl")
		logRequest(c, "Processing image analysis request", logrus.Fields{"image_url": imageURL})

		result, err := svc.AnalyzeImage(ctx, imageURL)
		if err != nil {
			respondError(c, msgAnalyzeFailed, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func uploadImage(svc service.ImageAnalysisService, uploader storage.TemporaryUploader, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, cfg)
		defer cancel()

		file, err := c.FormFile("file")
		if err != nil || file == nil || file.Size == 0 {
			respondError(c, "", apperrors.NewValidationError(msgNoFileUploaded, err))
			return
		}

		contentType := strings.TrimSpace(file.Header.Get("Content-Type"))
		if contentType == "" {
			contentType = defaultContentType
		}
		logRequest(c, "Processing image upload request", logrus.Fields{
			"file_name":    file.Filename,
			"file_size":    file.Size,
			"content_type": contentType,
		})

		f, err := file.Open()
		if err != nil {
			respondError(c, msgProcessFailed, apperrors.NewInternalError("failed to open uploaded file", err))
			return
		}
		defer f.Close()

		imageURL, err := uploader.Upload(ctx, f, contentType, filepath.Ext(file.Filename))
		if err != nil {
			respondError(c, msgProcessFailed, err)
			return
		}

		result, err := svc.AnalyzeImage(ctx, imageURL)
		if err != nil {
			respondError(c, msgProcessFailed, err)
			return
		}

		c.JSON(http.StatusOK, models.UploadAnalysisResponse{
			ImageURL: imageURL,
			Analysis: result,
		})
	}
}

func verifyText(svc service.ImageAnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, cfg)
		defer cancel()

		imageURL := c.Query("imageUrl")
		expectedText := c.Query("expectedText")
		logRequest(c, "Processing text verification request", logrus.Fields{"image_url": imageURL})

		result, err := svc.VerifyText(ctx, imageURL, expectedText)
		if err != nil {
			respondError(c, msgVerifyFailed, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "available",
		Version: apiVersion,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

func requestContext(c *gin.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
}

func logRequest(c *gin.Context, msg string, fields logrus.Fields) {
	fields["method"] = c.Request.Method
	fields["path"] = c.Request.URL.Path
	fields["user_agent"] = c.Request.UserAgent()
	fields["ip"] = c.ClientIP()
	logger.WithFields(fields).Info(msg)
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// respondError writes an ErrorResponse. Validation errors carry their own
// message; anything else is reported as "<message>: <cause>".
func respondError(c *gin.Context, message string, err error) {
	code := apperrors.GetStatusCode(err)

	detail := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		detail = appErr.Message
		if appErr.Type != apperrors.ErrorTypeValidation && appErr.Cause != nil {
			detail = appErr.Cause.Error()
		}
	}
	if message != "" && code >= http.StatusInternalServerError {
		detail = fmt.Sprintf("%s: %s", message, detail)
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: detail,
	})
}
