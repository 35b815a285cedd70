package model

import (
	"fmt"
	"sort"
)

// Rank zips each score with the class at the same position and orders the
// pairs by confidence, highest first. Ties keep class order.
func Rank(scores []float32, classes []string) ([]Prediction, error) {
	if len(scores) != len(classes) {
		return nil, fmt.Errorf("model returned %d scores for %d classes", len(scores), len(classes))
	}

	predictions := make([]Prediction, len(scores))
	for i, score := range scores {
		predictions[i] = Prediction{Label: classes[i], Confidence: score}
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Confidence > predictions[j].Confidence
	})
	return predictions, nil
}
