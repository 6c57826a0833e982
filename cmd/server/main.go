package main

import (
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/segtta/internal/app"
	"github.com/Brownie44l1/segtta/internal/handlers"
	"github.com/Brownie44l1/segtta/internal/logging"
	"github.com/Brownie44l1/segtta/internal/predict"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func main() {
	var root, configPath, port string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve test-time-augmented segmentation over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return serve(root, configPath, port)
		},
		SilenceUsage: true,
	}
	defaultPort := os.Getenv("PORT")
	if defaultPort == "" {
		defaultPort = "8080"
	}
	cmd.Flags().StringVar(&root, "root", ".", "project directory holding config/ and results/")
	cmd.Flags().StringVar(&configPath, "config", "", "predict config (default <root>/config/predict.yaml)")
	cmd.Flags().StringVar(&port, "port", defaultPort, "listen port")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func serve(root, configPath, port string) error {
	env, err := app.Load(root, configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New("server", env.Predict.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ds, err := env.Dataset(nil)
	if err != nil {
		return err
	}

	session, err := env.OpenModel(logger)
	if err != nil {
		return err
	}
	defer session.Close()

	runner := &predict.Runner{
		Model:    session,
		Geometry: env.Geometry,
		Runtime:  env.Runtime,
		Logger:   logger,
	}
	handler := handlers.NewHandler(runner, ds, handlers.Info{
		Architecture: env.Train.Architecture,
		Classes:      env.Train.NClasses,
		TileWidth:    env.Geometry.Tile,
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", enableCORS(handler.Health))
	mux.HandleFunc("/predict", enableCORS(handler.Predict))
	mux.HandleFunc("/predict/image", enableCORS(handler.PredictImage))

	logger.Infof("Server starting on port %s", port)
	logger.Infof("Classes: %d, tile width: %d", env.Train.NClasses, env.Geometry.Tile)
	logger.Info("Endpoints:")
	logger.Info("  GET /health - Health check")
	logger.Info("  POST /predict - Per-class pixel counts of the TTA mask")
	logger.Info("  POST /predict/image - TTA mask as PNG")
	logger.Infof("Upload test: curl -X POST -F \"image=@scene.png\" http://localhost:%s/predict/image -o mask.png", port)

	return http.ListenAndServe(":"+port, mux)
}
