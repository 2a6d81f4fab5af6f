package tomasulo

// PredictorStats holds statistics for a branch predictor.
type PredictorStats struct {
	// Predictions is the total number of branch predictions made.
	Predictions uint64
	// Correct is the number of correct predictions.
	Correct uint64
	// Mispredictions is the number of incorrect predictions.
	Mispredictions uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s PredictorStats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predictions) * 100
}

// MispredictionRate returns the misprediction rate as a percentage.
func (s PredictorStats) MispredictionRate() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Mispredictions) / float64(s.Predictions) * 100
}

// Predictor decides, at issue time, whether a conditional branch is taken.
// The branch target itself needs no prediction: targets are immediate
// offsets known as soon as the instruction is fetched.
//
// Update is called when a branch commits, so wrong-path branches that were
// squashed never train the predictor.
type Predictor interface {
	// Predict returns the predicted direction for the branch at the given
	// static instruction index.
	Predict(index int) bool
	// Update records the actual direction of a committed branch.
	Update(index int, taken bool)
	// Stats returns the accumulated prediction statistics.
	Stats() PredictorStats
}

// NotTakenPredictor is the baseline static predictor: every branch is
// predicted not taken.
type NotTakenPredictor struct {
	stats PredictorStats
}

// NewNotTakenPredictor creates a static not-taken predictor.
func NewNotTakenPredictor() *NotTakenPredictor {
	return &NotTakenPredictor{}
}

// Predict always predicts not taken.
func (p *NotTakenPredictor) Predict(index int) bool {
	p.stats.Predictions++
	return false
}

// Update records the outcome against the static not-taken prediction.
func (p *NotTakenPredictor) Update(index int, taken bool) {
	if taken {
		p.stats.Mispredictions++
	} else {
		p.stats.Correct++
	}
}

// Stats returns the accumulated prediction statistics.
func (p *NotTakenPredictor) Stats() PredictorStats {
	return p.stats
}

// BimodalPredictor is a table of 2-bit saturating counters indexed by static
// instruction index.
// States: 0=Strongly Not Taken, 1=Weakly Not Taken,
// 2=Weakly Taken, 3=Strongly Taken.
type BimodalPredictor struct {
	counters []uint8
	size     int
	stats    PredictorStats
}

// DefaultBimodalSize is the default counter table size. Must be a power of 2.
const DefaultBimodalSize = 256

// NewBimodalPredictor creates a bimodal predictor with the given table size,
// which must be a power of 2 (the default is used when non-positive).
// Counters start weakly not taken, matching the not-taken fetch policy.
func NewBimodalPredictor(size int) *BimodalPredictor {
	if size <= 0 {
		size = DefaultBimodalSize
	}
	p := &BimodalPredictor{
		counters: make([]uint8, size),
		size:     size,
	}
	for i := range p.counters {
		p.counters[i] = 1
	}
	return p
}

// index maps a static instruction index onto the counter table.
func (p *BimodalPredictor) index(instIndex int) int {
	return instIndex & (p.size - 1)
}

// Predict returns taken when the counter is 2 or 3.
func (p *BimodalPredictor) Predict(index int) bool {
	p.stats.Predictions++
	return p.counters[p.index(index)] >= 2
}

// Update adjusts the 2-bit saturating counter with the actual outcome.
func (p *BimodalPredictor) Update(index int, taken bool) {
	idx := p.index(index)
	counter := p.counters[idx]

	predicted := counter >= 2
	if predicted == taken {
		p.stats.Correct++
	} else {
		p.stats.Mispredictions++
	}

	if taken {
		if counter < 3 {
			p.counters[idx] = counter + 1
		}
	} else {
		if counter > 0 {
			p.counters[idx] = counter - 1
		}
	}
}

// Stats returns the accumulated prediction statistics.
func (p *BimodalPredictor) Stats() PredictorStats {
	return p.stats
}
