package hydrology

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/types"
	"github.com/rorbcloud/calibration-backend/internal/utils"
)

// RunInput is one simulation's full parameter set.
type RunInput struct {
	CatchmentData  string  `json:"catchment_data"`
	StormData      string  `json:"storm_data"`
	Kc             float64 `json:"kc"`
	M              float64 `json:"m"`
	InitialLoss    float64 `json:"initial_loss"`
	ContinuousLoss float64 `json:"continuous_loss"`
}

// Engine is the runoff-routing model collaborator. Run is side-effect-free
// and safe to retry; the returned payload is opaque keyed metrics.
type Engine interface {
	Run(ctx context.Context, input RunInput) (json.RawMessage, error)
}

// HTTPEngine calls a remote engine service over HTTP. The service accepts
// the RunInput JSON on POST /run and answers with the result payload.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

func NewHTTPEngine(log *logger.Logger) (*HTTPEngine, error) {
	engineLog := log.With("service", "HTTPEngine")
	baseURL := utils.GetEnv("ENGINE_URL", "", log)
	if baseURL == "" {
		return nil, fmt.Errorf("ENGINE_URL is not set")
	}
	timeout := utils.GetEnvAsDuration("ENGINE_TIMEOUT_SECONDS", 300, log)
	return &HTTPEngine{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     engineLog,
	}, nil
}

func (e *HTTPEngine) Run(ctx context.Context, input RunInput) (json.RawMessage, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, types.NewSimulationEngineError(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, types.NewSimulationEngineError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, types.NewSimulationEngineError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewSimulationEngineError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewSimulationEngineError(fmt.Errorf("engine returned %d: %s", resp.StatusCode, payload))
	}
	e.log.Debug("Engine run finished", "kc", input.Kc, "duration", time.Since(start))
	return payload, nil
}
