// Package web serves the prediction dashboard: an HTML form collecting the
// property fields, submitted to the REST API. When the API is unreachable
// and a model is loaded locally, the dashboard predicts directly.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crimson-sun/appraise/internal/api"
	"github.com/crimson-sun/appraise/internal/predictor"
)

// Dashboard renders the form and relays predictions.
type Dashboard struct {
	client *Client
	holder *predictor.Holder // direct fallback; may be nil
}

// NewDashboard creates a Dashboard talking to the API through client.
// holder, when non-nil, is used for direct predictions if the API is down.
func NewDashboard(client *Client, holder *predictor.Holder) *Dashboard {
	return &Dashboard{client: client, holder: holder}
}

// Router builds the gin engine serving the dashboard.
func (d *Dashboard) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.SetHTMLTemplate(pageTemplate)

	r.GET("/", d.form)
	r.POST("/", d.submit)
	return r
}

// formInput mirrors predictor.Input with form bindings for the dashboard.
type formInput struct {
	Bedrooms     int     `form:"bedrooms"`
	Bathrooms    float64 `form:"bathrooms"`
	SqftLiving   int     `form:"sqft_living"`
	SqftLot      int     `form:"sqft_lot"`
	Floors       float64 `form:"floors"`
	Waterfront   bool    `form:"waterfront"`
	View         int     `form:"view"`
	Condition    int     `form:"condition"`
	SqftAbove    int     `form:"sqft_above"`
	SqftBasement int     `form:"sqft_basement"`
	City         string  `form:"city"`
	StateZip     string  `form:"statezip"`
	Country      string  `form:"country"`
}

func (f formInput) input() predictor.Input {
	return predictor.Input{
		Bedrooms:     f.Bedrooms,
		Bathrooms:    f.Bathrooms,
		SqftLiving:   f.SqftLiving,
		SqftLot:      f.SqftLot,
		Floors:       f.Floors,
		Waterfront:   f.Waterfront,
		View:         f.View,
		Condition:    f.Condition,
		SqftAbove:    f.SqftAbove,
		SqftBasement: f.SqftBasement,
		City:         f.City,
		StateZip:     f.StateZip,
		Country:      f.Country,
	}
}

type pageData struct {
	Input     formInput
	Result    *api.PredictionResponse
	Direct    bool // predicted by the local model, not the API
	Error     string
	ModelName string // from /model/info; empty when unavailable
}

func defaultForm() formInput {
	return formInput{
		Bedrooms:     3,
		Bathrooms:    2.0,
		SqftLiving:   1800,
		SqftLot:      5000,
		Floors:       2.0,
		View:         2,
		Condition:    3,
		SqftAbove:    1600,
		SqftBasement: 200,
		City:         "Seattle",
		StateZip:     "WA 98101",
		Country:      "USA",
	}
}

func (d *Dashboard) form(c *gin.Context) {
	c.HTML(http.StatusOK, "page", pageData{
		Input:     defaultForm(),
		ModelName: d.modelName(c.Request.Context()),
	})
}

// modelName asks the API which model is serving. Best-effort: an
// unreachable or unloaded API just leaves the header blank.
func (d *Dashboard) modelName(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var info struct {
		ModelName string `json:"model_name"`
	}
	if err := d.client.GetJSON(ctx, "/model/info", &info); err != nil {
		return ""
	}
	return info.ModelName
}

func (d *Dashboard) submit(c *gin.Context) {
	var f formInput
	if err := c.ShouldBind(&f); err != nil {
		c.HTML(http.StatusBadRequest, "page", pageData{
			Input: defaultForm(),
			Error: fmt.Sprintf("invalid form: %v", err),
		})
		return
	}

	in := f.input()
	in.ApplyDefaults()

	data := pageData{Input: f}
	resp, err := d.client.Predict(c.Request.Context(), in)
	switch {
	case err == nil:
		data.Result = resp
	case isTransportError(err) && d.holder != nil && d.holder.Loaded():
		// The API is down but a model is loaded here.
		res, latency, derr := d.holder.Predict(in)
		if derr != nil {
			data.Error = fmt.Sprintf("prediction failed: %v", derr)
			break
		}
		slog.Warn("API unreachable, predicted with local model", "error", err)
		data.Result = &api.PredictionResponse{
			PredictedPrice:   res.Price,
			ModelName:        res.ModelName,
			Timestamp:        time.Now().UTC().Format(time.RFC3339Nano),
			ProcessingTimeMS: float64(latency.Microseconds()) / 1000,
		}
		data.Direct = true
	default:
		data.Error = fmt.Sprintf("prediction failed: %v", err)
	}

	c.HTML(http.StatusOK, "page", data)
}

// isTransportError distinguishes "the API could not be reached" from "the
// API answered with an error". Only the former triggers the direct-model
// fallback.
func isTransportError(err error) bool {
	var apiErr *APIError
	return !errors.As(err, &apiErr)
}

// WaitForAPI blocks until the API answers its health probe or the timeout
// expires.
func (d *Dashboard) WaitForAPI(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.client.WaitHealthy(ctx, 500*time.Millisecond)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<title>House Price Predictor</title>
<style>
body { font-family: sans-serif; max-width: 640px; margin: 2em auto; color: #222; }
label { display: block; margin-top: 0.6em; }
input, select { width: 12em; }
.result { margin-top: 1.5em; padding: 1em; background: #eef7ee; border-radius: 6px; }
.error { margin-top: 1.5em; padding: 1em; background: #f7eeee; border-radius: 6px; }
.meta { color: #666; font-size: 0.85em; }
</style>
</head>
<body>
<h1>House Price Predictor</h1>
{{if .ModelName}}<p class="meta">serving model: {{.ModelName}}</p>{{end}}
<form method="POST" action="/">
<label>Bedrooms <input type="number" name="bedrooms" value="{{.Input.Bedrooms}}" min="0"></label>
<label>Bathrooms <input type="number" name="bathrooms" value="{{.Input.Bathrooms}}" step="0.25" min="0"></label>
<label>Living area (sqft) <input type="number" name="sqft_living" value="{{.Input.SqftLiving}}" min="0"></label>
<label>Lot size (sqft) <input type="number" name="sqft_lot" value="{{.Input.SqftLot}}" min="0"></label>
<label>Floors <input type="number" name="floors" value="{{.Input.Floors}}" step="0.5" min="0"></label>
<label>Waterfront <input type="checkbox" name="waterfront" value="true"{{if .Input.Waterfront}} checked{{end}}></label>
<label>View (0-4) <input type="number" name="view" value="{{.Input.View}}" min="0" max="4"></label>
<label>Condition (1-5) <input type="number" name="condition" value="{{.Input.Condition}}" min="1" max="5"></label>
<label>Above ground (sqft) <input type="number" name="sqft_above" value="{{.Input.SqftAbove}}" min="0"></label>
<label>Basement (sqft) <input type="number" name="sqft_basement" value="{{.Input.SqftBasement}}" min="0"></label>
<label>City <input type="text" name="city" value="{{.Input.City}}"></label>
<label>State &amp; ZIP <input type="text" name="statezip" value="{{.Input.StateZip}}"></label>
<label>Country <input type="text" name="country" value="{{.Input.Country}}"></label>
<p><button type="submit">Predict Price</button></p>
</form>
{{if .Result}}
<div class="result">
<h2>${{printf "%.0f" .Result.PredictedPrice}}</h2>
<p class="meta">model: {{.Result.ModelName}}{{if .Direct}} (local, API unreachable){{end}}
&middot; {{printf "%.2f" .Result.ProcessingTimeMS}} ms</p>
</div>
{{end}}
{{if .Error}}
<div class="error">{{.Error}}</div>
{{end}}
</body>
</html>
`))
