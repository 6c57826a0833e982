package model

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/Brownie44l1/segtta/internal/config"
	"github.com/Brownie44l1/segtta/internal/tta"
)

// Session runs an exported segmentation network with onnxruntime. Input and
// output tensors are allocated once for the configured batch size; shorter
// batches are zero padded.
type Session struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewSession initializes the onnxruntime environment and loads the network
// at modelPath on the device selected by rt.
func NewSession(modelPath string, metadata Metadata, rt config.Runtime, logger *zap.SugaredLogger) (*Session, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}
	if metadata.Library != "" {
		ort.SetSharedLibraryPath(metadata.Library)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	options, err := sessionOptions(rt.Device, logger)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	inputShape := ort.NewShape(metadata.InputShape()...)
	outputShape := ort.NewShape(metadata.OutputShape()...)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	logger.Infof("Load model weight, %s (input %v, output %v, device %s)",
		modelPath, metadata.InputShape(), metadata.OutputShape(), rt.Device)

	return &Session{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// sessionOptions appends the CUDA execution provider when a GPU is selected
// and falls back to the CPU provider when CUDA is unavailable.
func sessionOptions(device config.Device, logger *zap.SugaredLogger) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	if !device.CUDA() {
		return options, nil
	}

	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		logger.Warnf("CUDA unavailable, running on cpu: %v", err)
		return options, nil
	}
	defer cuda.Destroy()

	if err := cuda.Update(map[string]string{"device_id": strconv.Itoa(device.GPU)}); err != nil {
		logger.Warnf("Failed to select %s, running on cpu: %v", device, err)
		return options, nil
	}
	if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
		logger.Warnf("Failed to enable %s, running on cpu: %v", device, err)
	}
	return options, nil
}

// Segment runs the network on x and returns per-class score maps for each
// sample. Calls are serialized since the session owns a single set of buffers.
func (s *Session) Segment(ctx context.Context, x *tta.Tensor) (*tta.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := s.Metadata
	if err := m.CheckInput(x); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	padInput(s.inputTensor.GetData(), x.Data)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := tta.NewTensor(x.N, m.Classes, m.Height, m.Width)
	copy(out.Data, s.outputTensor.GetData()[:len(out.Data)])
	return out, nil
}

// padInput copies data to the front of buf and zeroes the rest.
func padInput(buf, data []float32) {
	n := copy(buf, data)
	clear(buf[n:])
}

// Close releases the tensors, the session and the onnxruntime environment.
func (s *Session) Close() {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	ort.DestroyEnvironment()
}
