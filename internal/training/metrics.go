package training

import (
	"fmt"
	"math"
)

// Metrics are the validation numbers reported after each epoch.
type Metrics struct {
	Loss     float64
	Accuracy float64
	Samples  int
}

// minProbability keeps -log(p) finite when the model is certain and wrong.
const minProbability = 1e-7

// Tally accumulates sparse categorical cross-entropy and accuracy over
// softmax outputs.
type Tally struct {
	lossSum float64
	correct int
	count   int
}

func (t *Tally) Add(probabilities []float32, label int) error {
	if label < 0 || label >= len(probabilities) {
		return fmt.Errorf("label %d outside %d outputs", label, len(probabilities))
	}

	p := math.Max(float64(probabilities[label]), minProbability)
	t.lossSum += -math.Log(p)

	if argmax(probabilities) == label {
		t.correct++
	}
	t.count++
	return nil
}

func (t *Tally) Metrics() Metrics {
	if t.count == 0 {
		return Metrics{}
	}
	return Metrics{
		Loss:     t.lossSum / float64(t.count),
		Accuracy: float64(t.correct) / float64(t.count),
		Samples:  t.count,
	}
}

// argmax returns the first index holding the maximum.
func argmax(values []float32) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
