package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClassifier talks to a model-serving predict endpoint: the image bytes
// go in the request body and ranked predictions come back as JSON. Any
// transport or decode failure surfaces as ErrUnavailable.
type HTTPClassifier struct {
	endpoint string
	client   *http.Client
}

func NewHTTPClassifier(endpoint string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, image []byte) ([]Prediction, error) {
	var resp struct {
		Predictions []Prediction `json:"predictions"`
	}
	if err := post(ctx, c.client, c.endpoint, image, &resp); err != nil {
		return nil, err
	}
	return resp.Predictions, nil
}

// HTTPIdentifier is the same wire shape against the domain model's endpoint.
type HTTPIdentifier struct {
	endpoint string
	client   *http.Client
}

func NewHTTPIdentifier(endpoint string, timeout time.Duration) *HTTPIdentifier {
	return &HTTPIdentifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPIdentifier) Identify(ctx context.Context, image []byte) (string, float64, error) {
	var resp struct {
		ClassID string  `json:"class_id"`
		Score   float64 `json:"score"`
	}
	if err := post(ctx, c.client, c.endpoint, image, &resp); err != nil {
		return "", 0, err
	}
	return resp.ClassID, resp.Score, nil
}

func post(ctx context.Context, client *http.Client, endpoint string, image []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(image))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: predict endpoint returned %s", ErrUnavailable, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: bad predict response: %v", ErrUnavailable, err)
	}
	return nil
}
