// Package classifier defines the match-outcome prediction boundary consumed
// by adapters that enrich score-only sources. The model itself is opaque to
// the rest of the system: anything that can map a feature vector to a class
// and a probability distribution satisfies the contract.
package classifier

import (
	"errors"
	"fmt"
	"math"
)

// NumFeatures is the expected feature vector length:
// home strength, away strength, home advantage, recent form home,
// recent form away, head to head, injuries.
const NumFeatures = 7

// Class indices returned by Predict.
const (
	ClassHomeWin = 0
	ClassDraw    = 1
	ClassAwayWin = 2
)

// ErrNotReady is returned by classifiers that have no model loaded.
var ErrNotReady = errors.New("classifier not ready")

// Classifier predicts a match outcome from a feature vector.
type Classifier interface {
	// Predict returns the winning class index and the probability per
	// class, indexed by ClassHomeWin/ClassDraw/ClassAwayWin.
	Predict(features []float64) (class int, probs []float64, err error)
}

// Baseline is a fixed-weight linear model over the standard feature vector.
// It stands in wherever a trained model is not configured, and keeps the
// pipeline deterministic in tests.
type Baseline struct{}

// Per-class feature weights. Rows: home win, draw, away win.
var baselineWeights = [3][NumFeatures]float64{
	{1.6, -1.2, 1.1, 1.0, -0.8, 0.5, 0.4},
	{-0.2, -0.2, 0.0, 0.1, 0.1, 1.2, 0.2},
	{-1.2, 1.6, -0.9, -0.8, 1.0, -0.5, 0.4},
}

// Predict scores each class linearly and normalizes via softmax.
func (Baseline) Predict(features []float64) (int, []float64, error) {
	if len(features) != NumFeatures {
		return 0, nil, fmt.Errorf("expected %d features, got %d", NumFeatures, len(features))
	}

	scores := make([]float64, 3)
	for class := range baselineWeights {
		for i, w := range baselineWeights[class] {
			scores[class] += w * features[i]
		}
	}

	probs := softmax(scores)
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return best, probs, nil
}

func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}

	probs := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		probs[i] = math.Exp(s - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
