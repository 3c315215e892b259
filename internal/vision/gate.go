package vision

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ErrUnavailable means the model behind a capability could not be reached
// or answered garbage. The photo was neither accepted nor rejected; callers
// should ask the user to retry.
var ErrUnavailable = errors.New("classifier unavailable")

// Gate decides whether a photo plausibly shows the target species before
// identification is attempted. It accepts when any of the classifier's topK
// predictions carries a target label; rejection has no side effects.
type Gate struct {
	classifier Classifier
	targets    map[string]struct{}
	topK       int
	logger     *zap.Logger
}

func NewGate(classifier Classifier, targetLabels []string, topK int, logger *zap.Logger) *Gate {
	targets := make(map[string]struct{}, len(targetLabels))
	for _, l := range targetLabels {
		targets[strings.ToLower(l)] = struct{}{}
	}
	return &Gate{
		classifier: classifier,
		targets:    targets,
		topK:       topK,
		logger:     logger,
	}
}

func (g *Gate) Accept(ctx context.Context, image []byte) (bool, error) {
	preds, err := g.classifier.Classify(ctx, image)
	if err != nil {
		return false, err
	}

	limit := g.topK
	if limit > len(preds) {
		limit = len(preds)
	}
	for _, p := range preds[:limit] {
		if _, ok := g.targets[strings.ToLower(p.Label)]; ok {
			g.logger.Debug("photo accepted by species gate",
				zap.String("label", p.Label),
				zap.Float64("score", p.Score))
			return true, nil
		}
	}
	return false, nil
}
