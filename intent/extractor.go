package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/remyhfb/delight-desk-v2-sub006/config"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
)

// Extractor classifies an inbound customer email into an actionable
// order-modification intent. The model behind it is a black box; the
// engine only consumes its structured output.
type Extractor interface {
	Extract(ctx context.Context, emailBody string) (*model.Intent, error)
}

var _ Extractor = new(httpClassifierExtractor)

type httpClassifierExtractor struct {
	conf   config.IntentConfig
	client *http.Client
}

func NewHttpClassifierExtractor(conf config.IntentConfig) *httpClassifierExtractor {
	return &httpClassifierExtractor{
		conf:   conf,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type classifyRequest struct {
	Body string `json:"body"`
}

func (e *httpClassifierExtractor) Extract(ctx context.Context, emailBody string) (*model.Intent, error) {
	payload, err := json.Marshal(classifyRequest{Body: emailBody})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.conf.ClassifierURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned %d", res.StatusCode)
	}
	var intent model.Intent
	if err := json.NewDecoder(res.Body).Decode(&intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// Gate enforces the confidence threshold below which an email never
// enters the workflow engine and is left for human triage.
func Gate(intent *model.Intent, threshold float64) error {
	if intent.Confidence < threshold {
		return model.LowConfidenceError{Confidence: intent.Confidence, Threshold: threshold}
	}
	if intent.OrderNumber == "" {
		return model.LowConfidenceError{Confidence: intent.Confidence, Threshold: threshold}
	}
	return nil
}
