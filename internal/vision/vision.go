package vision

import "context"

// Prediction is one ranked label from the general-purpose classifier.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier is the general-purpose image classifier capability. Results
// come back ordered best-first.
type Classifier interface {
	Classify(ctx context.Context, image []byte) ([]Prediction, error)
}

// Identifier is the domain-specific model that maps a photo to the enrolled
// class it most resembles, with the model's probability for that class.
type Identifier interface {
	Identify(ctx context.Context, image []byte) (classID string, score float64, err error)
}
