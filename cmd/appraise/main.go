// Command appraise trains house-price models and serves predictions.
//
//	appraise train   — run the training pipeline and save the Model Package
//	appraise serve   — serve the REST prediction API (trains if no artifact)
//	appraise web     — serve the dashboard, starting the API if needed
//	appraise all     — train, then verify the artifact loads
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/crimson-sun/appraise/internal/api"
	"github.com/crimson-sun/appraise/internal/artifact"
	"github.com/crimson-sun/appraise/internal/audit"
	"github.com/crimson-sun/appraise/internal/config"
	"github.com/crimson-sun/appraise/internal/logging"
	"github.com/crimson-sun/appraise/internal/predictor"
	"github.com/crimson-sun/appraise/internal/trainer"
	"github.com/crimson-sun/appraise/internal/web"
)

var (
	cfgFile string
	cfg     config.Config
)

func main() {
	root := &cobra.Command{
		Use:           "appraise",
		Short:         "House price prediction: training pipeline, REST API and dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; real environment variables win.
			_ = godotenv.Load()

			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}
			logging.Init(cfg.Logging.Format, logging.ParseLevel(cfg.Logging.Level))
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./config.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "train",
			Short: "Train candidate models and persist the best as the Model Package",
			RunE:  runTrain,
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the prediction API, training first if no artifact exists",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "web",
			Short: "Serve the dashboard, starting the API in-process when it is not already running",
			RunE:  runWeb,
		},
		&cobra.Command{
			Use:   "all",
			Short: "Train, then verify the saved artifact loads and predicts",
			RunE:  runAll,
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "appraise: %v\n", err)
		os.Exit(1)
	}
}

// openSink builds the configured audit sinks: the NDJSON file, an optional
// webhook collector, and optionally stdout. With none configured, auditing
// is off.
func openSink() (audit.Sink, error) {
	var sinks []audit.Sink
	if cfg.Audit.Path != "" {
		var opts []audit.FileOption
		if cfg.Audit.MaxSize > 0 {
			opts = append(opts, audit.WithMaxSize(cfg.Audit.MaxSize))
		}
		fs, err := audit.NewFileSink(cfg.Audit.Path, opts...)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
	}
	if cfg.Audit.WebhookURL != "" {
		sinks = append(sinks, audit.NewWebhookSink(cfg.Audit.WebhookURL))
	}
	if cfg.Audit.Stdout {
		sinks = append(sinks, audit.NewStdoutSink(false))
	}
	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return audit.NewMulti(sinks...), nil
	}
}

func closeSink(sink audit.Sink) {
	if sink == nil {
		return
	}
	if err := sink.Close(); err != nil {
		slog.Warn("audit close failed", "error", err)
	}
}

// ensureArtifact loads the Model Package, training one when none exists.
// Any other load failure is fatal: serving with a corrupt artifact is worse
// than not starting.
func ensureArtifact(ctx context.Context, sink audit.Sink) (*artifact.Package, error) {
	pkg, err := artifact.Load(cfg.Train.ModelPath)
	switch {
	case err == nil:
		return pkg, nil
	case errors.Is(err, artifact.ErrNotFound):
		slog.Info("no artifact found, training", "path", cfg.Train.ModelPath)
		return trainer.Run(ctx, cfg, sink)
	default:
		return nil, err
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// serveHTTP runs srv until ctx is cancelled, then shuts down gracefully.
func serveHTTP(ctx context.Context, srv *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down " + name)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sink, err := openSink()
	if err != nil {
		return err
	}
	defer closeSink(sink)

	pkg, err := trainer.Run(ctx, cfg, sink)
	if err != nil {
		return err
	}
	fmt.Printf("trained %s: test R2 %.4f, RMSE %.0f, artifact %s\n",
		pkg.ModelName, pkg.Performance.R2Test, pkg.Performance.RMSETest, cfg.Train.ModelPath)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sink, err := openSink()
	if err != nil {
		return err
	}
	defer closeSink(sink)

	pkg, err := ensureArtifact(ctx, sink)
	if err != nil {
		return err
	}
	holder := predictor.NewHolder(pkg)
	slog.Info("model loaded", "model", pkg.ModelName, "r2", pkg.Performance.R2Test)
	if sink != nil {
		if err := sink.Write(ctx, audit.Startup(pkg.ModelName, pkg.Performance.R2Test)); err != nil {
			slog.Warn("audit write failed", "error", err)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		Handler: api.New(holder, sink).Router(),
	}
	return serveHTTP(ctx, srv, "api")
}

func runWeb(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sink, err := openSink()
	if err != nil {
		return err
	}
	defer closeSink(sink)

	pkg, err := ensureArtifact(ctx, sink)
	if err != nil {
		return err
	}
	holder := predictor.NewHolder(pkg)
	client := web.NewClient(cfg.Web.APIURL)

	// Start the API in-process unless one is already answering at the
	// configured URL.
	if !client.Healthy(ctx) {
		apiSrv := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
			Handler: api.New(holder, sink).Router(),
		}
		go func() {
			if err := serveHTTP(ctx, apiSrv, "api"); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("api server failed", "error", err)
			}
		}()
	}

	dash := web.NewDashboard(client, holder)
	if err := dash.WaitForAPI(ctx, 10*time.Second); err != nil {
		// Dashboard still works through the local model.
		slog.Warn("API not healthy, dashboard will predict locally", "error", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Web.Port),
		Handler: dash.Router(),
	}
	return serveHTTP(ctx, srv, "dashboard")
}

func runAll(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sink, err := openSink()
	if err != nil {
		return err
	}
	defer closeSink(sink)

	pkg, err := trainer.Run(ctx, cfg, sink)
	if err != nil {
		return err
	}

	// Verify the persisted artifact round-trips and predicts.
	loaded, err := artifact.Load(cfg.Train.ModelPath)
	if err != nil {
		return fmt.Errorf("artifact verification: %w", err)
	}
	var probe predictor.Input
	probe.ApplyDefaults()
	probe.Bedrooms, probe.Bathrooms, probe.SqftLiving, probe.Condition = 3, 2, 1800, 3
	res, err := predictor.Predict(loaded, probe)
	if err != nil {
		return fmt.Errorf("artifact verification: %w", err)
	}

	fmt.Printf("trained %s: test R2 %.4f, RMSE %.0f\n",
		pkg.ModelName, pkg.Performance.R2Test, pkg.Performance.RMSETest)
	fmt.Printf("artifact %s verified: probe prediction $%.0f\n", cfg.Train.ModelPath, res.Price)
	return nil
}
