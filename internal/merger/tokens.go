package merger

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// TokenEstimator reports how many LLM tokens a piece of text will
// consume. The budget check only needs a consistent estimate, not an
// exact count, so the default is a cheap words-based heuristic.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// HeuristicEstimator estimates tokens as word count times a fixed
// ratio. The default ratio of 1.3 is deliberately conservative.
type HeuristicEstimator struct {
	TokensPerWord float64
}

// NewHeuristicEstimator returns an estimator with the given ratio, or
// the 1.3 default when ratio is not positive.
func NewHeuristicEstimator(ratio float64) *HeuristicEstimator {
	if ratio <= 0 {
		ratio = 1.3
	}
	return &HeuristicEstimator{TokensPerWord: ratio}
}

// EstimateTokens implements TokenEstimator.
func (e *HeuristicEstimator) EstimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * e.TokensPerWord)
}

// BPEEstimator counts tokens exactly with the cl100k_base encoding.
// It uses an offline BPE dictionary so no network access is needed.
type BPEEstimator struct {
	encoder *tiktoken.Tiktoken
}

// NewBPEEstimator loads the encoding once per instance.
func NewBPEEstimator() (*BPEEstimator, error) {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding: %w", err)
	}
	return &BPEEstimator{encoder: encoder}, nil
}

// EstimateTokens implements TokenEstimator.
func (e *BPEEstimator) EstimateTokens(text string) int {
	return len(e.encoder.Encode(text, nil, nil))
}
