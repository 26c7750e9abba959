// Package api exposes the prediction service over HTTP: a health probe, the
// predict endpoint and model metadata. Handlers hold no package-level
// state; the model holder and audit sink are injected.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crimson-sun/appraise/internal/audit"
	"github.com/crimson-sun/appraise/internal/predictor"
)

// PredictionResponse is the success body of POST /predict.
type PredictionResponse struct {
	PredictedPrice   float64 `json:"predicted_price"`
	ModelName        string  `json:"model_name"`
	Timestamp        string  `json:"timestamp"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
}

// Server wires the HTTP surface to the loaded model and the audit trail.
type Server struct {
	holder *predictor.Holder
	sink   audit.Sink
}

// New creates a Server around the given model holder and audit sink.
// The sink may be nil in which case nothing is audited.
func New(holder *predictor.Holder, sink audit.Sink) *Server {
	return &Server{holder: holder, sink: sink}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.root)
	r.GET("/health", s.health)
	r.POST("/predict", s.predict)
	r.GET("/model/info", s.modelInfo)
	return r
}

func (s *Server) root(c *gin.Context) {
	model := "not loaded"
	if pkg := s.holder.Get(); pkg != nil {
		model = pkg.ModelName
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "House Price Prediction API",
		"status":  "running",
		"model":   model,
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
		"model_loaded": s.holder.Loaded(),
	})
}

func (s *Server) predict(c *gin.Context) {
	start := time.Now()

	var in predictor.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		// Malformed body (e.g. non-numeric sqft_living). The request fails,
		// the failure is audited with its cause, and serving continues.
		s.record(c, audit.PredictionError(in, err, time.Since(start)))
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	in.ApplyDefaults()

	res, latency, err := s.holder.Predict(in)
	switch {
	case errors.Is(err, predictor.ErrUnavailable):
		// Distinct service condition, not a prediction failure.
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "model not loaded"})
	case err != nil:
		s.record(c, audit.PredictionError(in, err, latency))
		slog.Error("prediction failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("prediction error: %v", err)})
	default:
		s.record(c, audit.Prediction(in, res.Price, res.ModelName, latency))
		c.JSON(http.StatusOK, PredictionResponse{
			PredictedPrice:   res.Price,
			ModelName:        res.ModelName,
			Timestamp:        time.Now().UTC().Format(time.RFC3339Nano),
			ProcessingTimeMS: float64(latency.Microseconds()) / 1000,
		})
	}
}

func (s *Server) modelInfo(c *gin.Context) {
	pkg := s.holder.Get()
	if pkg == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "model not loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"model_name": pkg.ModelName,
		"performance": gin.H{
			"r2_test":   pkg.Performance.R2Test,
			"rmse_test": pkg.Performance.RMSETest,
			"cv_scores": pkg.Performance.CVScores,
		},
		"features_count": len(pkg.FeatureNames),
		"trained_at":     pkg.TrainedAt.Format(time.RFC3339),
	})
}

func (s *Server) record(c *gin.Context, event audit.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Write(c.Request.Context(), event); err != nil {
		slog.Warn("audit write failed", "error", err)
	}
}
