package markov

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// CeilingPolicy controls how often the sentence length ceiling is drawn.
type CeilingPolicy string

const (
	// CeilingPerToken re-draws the ceiling before every length check.
	CeilingPerToken CeilingPolicy = "per_token"
	// CeilingPerSentence draws the ceiling once when a sentence is seeded.
	CeilingPerSentence CeilingPolicy = "per_sentence"
)

// Params is the immutable set of generation parameters. Build one at the
// boundary and pass it by value; Validate is called by every entry point.
type Params struct {
	// Order is the Markov window size k.
	Order int `validate:"gte=1"`
	// MinSentenceLen and MaxSentenceLen bound the randomized sentence length
	// ceiling, inclusive. A ceiling at or below Order cuts the sentence after
	// its first successor.
	MinSentenceLen int `validate:"gte=0,ltefield=MaxSentenceLen"`
	MaxSentenceLen int `validate:"gte=0"`
	// NumSentences is the target sentence count per paragraph.
	NumSentences int `validate:"gte=1"`
	// NumParagraphs is the number of paragraphs in a blob.
	NumParagraphs int `validate:"gte=1"`
	// Variation bounds the per-paragraph deviation from NumSentences.
	Variation int `validate:"gte=0"`
	// Ceiling defaults to CeilingPerToken when empty.
	Ceiling CeilingPolicy `validate:"omitempty,oneof=per_token per_sentence"`
}

// DefaultParams returns the parameters the reading exercise ships with.
func DefaultParams() Params {
	return Params{
		Order:          3,
		MinSentenceLen: 8,
		MaxSentenceLen: 30,
		NumSentences:   5,
		NumParagraphs:  1,
		Variation:      2,
		Ceiling:        CeilingPerToken,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate rejects out-of-range parameters with a *ConfigError.
func (p Params) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		rule := fe.Tag()
		if fe.Param() != "" {
			rule = rule + "=" + fe.Param()
		}
		return &ConfigError{Field: fe.Field(), Rule: rule, Value: fe.Value()}
	}
	return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
}

func (p Params) ceilingPolicy() CeilingPolicy {
	if p.Ceiling == "" {
		return CeilingPerToken
	}
	return p.Ceiling
}
