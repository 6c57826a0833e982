package handlers

import (
	"encoding/json"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"go.uber.org/zap"

	"github.com/Brownie44l1/segtta/internal/dataset"
	"github.com/Brownie44l1/segtta/internal/mask"
	"github.com/Brownie44l1/segtta/internal/predict"
)

// maxUpload bounds the multipart body (10MB).
const maxUpload = 10 << 20

// Info is reported by the health endpoint.
type Info struct {
	Status       string `json:"status"`
	Architecture string `json:"architecture"`
	Classes      int    `json:"classes"`
	TileWidth    int    `json:"tile_width"`
}

// PredictionResponse summarizes a mask without returning its pixels.
type PredictionResponse struct {
	Filename    string `json:"filename"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ClassCounts []int  `json:"class_counts"`
}

type Handler struct {
	runner  *predict.Runner
	dataset *dataset.Dataset
	info    Info
	logger  *zap.SugaredLogger
}

func NewHandler(runner *predict.Runner, ds *dataset.Dataset, info Info, logger *zap.SugaredLogger) *Handler {
	info.Status = "healthy"
	return &Handler{
		runner:  runner,
		dataset: ds,
		info:    info,
		logger:  logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.info)
}

// PredictImage returns the label mask of the uploaded image as a PNG.
func (h *Handler) PredictImage(w http.ResponseWriter, r *http.Request) {
	m, _, ok := h.segment(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := mask.Encode(w, m); err != nil {
		h.logger.Errorf("Failed to encode mask: %v", err)
	}
}

// Predict returns per-class pixel counts of the uploaded image's mask.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	m, filename, ok := h.segment(w, r)
	if !ok {
		return
	}
	counts := make([]int, h.info.Classes)
	for _, v := range m.Pix {
		if int(v) < len(counts) {
			counts[v]++
		}
	}
	b := m.Bounds()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PredictionResponse{
		Filename:    filename,
		Width:       b.Dx(),
		Height:      b.Dy(),
		ClassCounts: counts,
	})
}

// segment decodes the "image" form file and runs it through the TTA runner.
// On failure it writes the error response and reports false.
func (h *Handler) segment(w http.ResponseWriter, r *http.Request) (*image.Gray, string, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, "", false
	}

	if err := r.ParseMultipartForm(maxUpload); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return nil, "", false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return nil, "", false
	}
	defer file.Close()

	h.logger.Debugf("Received file: %s, size: %d bytes", header.Filename, header.Size)

	img, format, err := image.Decode(file)
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG", http.StatusBadRequest)
		return nil, "", false
	}

	h.logger.Debugf("Image format: %s, dimensions: %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())

	sample, err := h.dataset.Prepare(img, header.Filename)
	if err != nil {
		h.logger.Errorf("Preprocessing error: %v", err)
		http.Error(w, "Failed to preprocess image", http.StatusInternalServerError)
		return nil, "", false
	}
	width, height := h.dataset.InputSize()
	batch, err := dataset.NewBatch(0, height, width, []*dataset.Sample{sample})
	if err != nil {
		h.logger.Errorf("Preprocessing error: %v", err)
		http.Error(w, "Failed to preprocess image", http.StatusInternalServerError)
		return nil, "", false
	}

	masks, err := h.runner.Masks(r.Context(), batch)
	if err != nil {
		h.logger.Errorf("Prediction error: %v", err)
		http.Error(w, "Prediction failed", http.StatusInternalServerError)
		return nil, "", false
	}
	return masks[0], header.Filename, true
}
