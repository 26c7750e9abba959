// Package audit records the audit trail: every prediction success and
// failure, API startup and training run, written as NDJSON events. The
// trail is a design requirement of the serving contract, not incidental
// logging.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/appraise/internal/predictor"
)

// Event types.
const (
	TypePrediction      = "prediction"
	TypePredictionError = "prediction_error"
	TypeAPIStartup      = "api_startup"
	TypeTraining        = "model_training"
)

// Event is one audit record.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Status    string    `json:"status"` // "success" or "error"

	Input          *predictor.Input `json:"features,omitempty"`
	PredictedPrice float64          `json:"prediction,omitempty"`
	Error          string           `json:"error,omitempty"`
	DurationMS     float64          `json:"duration_ms,omitempty"`
	ModelName      string           `json:"model_name,omitempty"`

	// Training-run fields.
	DatasetSize     int     `json:"dataset_size,omitempty"`
	FeatureCount    int     `json:"features_count,omitempty"`
	PerformanceR2   float64 `json:"performance_r2,omitempty"`
	PerformanceRMSE float64 `json:"performance_rmse,omitempty"`
}

// Sink is a destination for audit events.
type Sink interface {
	Write(ctx context.Context, event Event) error
	Close() error
}

func newEvent(eventType, status string) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
	}
}

// Prediction builds a success event for one served prediction.
func Prediction(in predictor.Input, price float64, modelName string, latency time.Duration) Event {
	e := newEvent(TypePrediction, "success")
	e.Input = &in
	e.PredictedPrice = price
	e.ModelName = modelName
	e.DurationMS = float64(latency.Microseconds()) / 1000
	return e
}

// PredictionError builds a failure event carrying the offending input and
// the captured error.
func PredictionError(in predictor.Input, err error, latency time.Duration) Event {
	e := newEvent(TypePredictionError, "error")
	e.Input = &in
	e.Error = err.Error()
	e.DurationMS = float64(latency.Microseconds()) / 1000
	return e
}

// Startup builds an API startup event.
func Startup(modelName string, r2 float64) Event {
	e := newEvent(TypeAPIStartup, "success")
	e.ModelName = modelName
	e.PerformanceR2 = r2
	return e
}

// Training builds a training-run event.
func Training(modelName string, datasetSize, featureCount int, r2, rmse float64, duration time.Duration) Event {
	e := newEvent(TypeTraining, "success")
	e.ModelName = modelName
	e.DatasetSize = datasetSize
	e.FeatureCount = featureCount
	e.PerformanceR2 = r2
	e.PerformanceRMSE = rmse
	e.DurationMS = float64(duration.Microseconds()) / 1000
	return e
}
