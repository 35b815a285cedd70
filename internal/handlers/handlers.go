package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/Brownie44l1/waste-classifier/internal/classifier"
	"github.com/Brownie44l1/waste-classifier/internal/model"
)

// Classifier is the use case the HTTP layer drives.
type Classifier interface {
	ClassifyUpload(ctx context.Context, upload io.Reader) ([]model.Prediction, error)
	ClassifyTensor(ctx context.Context, input []float32) ([]model.Prediction, error)
	Metadata() model.Metadata
}

var topLabelTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "classifier_top_label_total",
	Help: "Successful classifications by highest-confidence label.",
}, []string{"label"})

type Handler struct {
	classifier Classifier
	modelPath  string
	logger     *zap.Logger
}

func NewHandler(classifier Classifier, modelPath string, logger *zap.Logger) *Handler {
	return &Handler{
		classifier: classifier,
		modelPath:  modelPath,
		logger:     logger,
	}
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"model":   h.modelPath,
		"classes": len(h.classifier.Metadata().Classes),
	})
}

// Labels handles GET /labels. The order is the model's output order.
func (h *Handler) Labels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"labels": h.classifier.Metadata().Classes})
}

// Classify handles POST /classify with a multipart "file" field.
func (h *Handler) Classify(c *gin.Context) {
	h.logger.Info("Received a classification request")

	header, err := c.FormFile("file")
	if err != nil || header.Filename == "" {
		respondError(c, classifier.ErrNoFile)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !classifier.IsImageContentType(contentType) {
		respondError(c, classifier.ErrNotImage)
		return
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Error("Error opening upload", zap.Error(err))
		respondError(c, err)
		return
	}
	defer file.Close()

	h.logger.Debug("Received file",
		zap.String("filename", header.Filename),
		zap.String("content_type", contentType),
		zap.Int64("size", header.Size),
	)

	predictions, err := h.classifier.ClassifyUpload(c.Request.Context(), file)
	if err != nil {
		h.logger.Error("Error during classification", zap.Error(err))
		respondError(c, err)
		return
	}

	h.respondPredictions(c, predictions)
}

// Predict handles POST /predict with an already preprocessed input tensor.
func (h *Handler) Predict(c *gin.Context) {
	var req model.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "Invalid JSON"})
		return
	}

	predictions, err := h.classifier.ClassifyTensor(c.Request.Context(), req.Image)
	if err != nil {
		if !errors.Is(err, classifier.ErrInputSize) {
			h.logger.Error("Prediction error", zap.Error(err))
		}
		respondError(c, err)
		return
	}

	h.respondPredictions(c, predictions)
}

func (h *Handler) respondPredictions(c *gin.Context, predictions []model.Prediction) {
	if len(predictions) > 0 {
		topLabelTotal.WithLabelValues(predictions[0].Label).Inc()
		h.logger.Info("Prediction result",
			zap.String("label", predictions[0].Label),
			zap.Float32("confidence", predictions[0].Confidence),
		)
	}
	c.JSON(http.StatusOK, model.PredictionResponse{Predictions: predictions})
}
