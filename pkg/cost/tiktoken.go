package cost

import (
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tiktoken encoding used when none is specified.
const DefaultEncoding = "cl100k_base"

// TiktokenEstimator counts tokens with a real BPE encoding. The encoding
// dictionary is loaded lazily on first use because tiktoken may download it;
// initialization is retried a few times and on persistent failure the
// estimator degrades to the bytes/4 heuristic rather than erroring out of a
// corpus load.
type TiktokenEstimator struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	initErr  error
	fallback HeuristicEstimator
}

// NewTiktokenEstimator creates a token estimator for the given encoding.
// An empty encoding selects DefaultEncoding.
func NewTiktokenEstimator(encoding string) *TiktokenEstimator {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &TiktokenEstimator{encoding: encoding}
}

func (t *TiktokenEstimator) init() error {
	t.once.Do(func() {
		t.initErr = retry.Do(
			func() error {
				enc, err := tiktoken.GetEncoding(t.encoding)
				if err != nil {
					return err
				}
				t.enc = enc
				return nil
			},
			retry.Attempts(3),
			retry.Delay(200*time.Millisecond),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
		)
	})
	return t.initErr
}

// Estimate returns the token count of text, or the heuristic approximation
// when the encoding is unavailable.
func (t *TiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	if err := t.init(); err != nil {
		return t.fallback.Estimate(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Unit returns the unit of the estimate
func (t *TiktokenEstimator) Unit() string { return UnitTokens }
