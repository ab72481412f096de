package condor

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// SortMethod selects the ranking key
type SortMethod string

const (
	// SortByRiskReward ranks by risk/reward ascending (lower is better)
	SortByRiskReward SortMethod = "risk_reward"
	// SortByExpectedProfit ranks by expected profit descending
	SortByExpectedProfit SortMethod = "expected_profit"
	// SortByProbability ranks by probability of profit descending
	SortByProbability SortMethod = "probability"
	// SortByScore ranks by strategy score descending
	SortByScore SortMethod = "score"
)

// SortMethods lists every supported sort method
var SortMethods = []SortMethod{SortByRiskReward, SortByExpectedProfit, SortByProbability, SortByScore}

// String returns the string representation of the sort method
func (m SortMethod) String() string {
	return string(m)
}

// IsValid reports whether the method is one of the supported sort methods
func (m SortMethod) IsValid() bool {
	for _, known := range SortMethods {
		if m == known {
			return true
		}
	}
	return false
}

// ParseSortMethod converts user input to a SortMethod. An empty string
// yields the default risk/reward ordering.
func ParseSortMethod(s string) (SortMethod, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "risk_reward", "risk-reward", "rr":
		return SortByRiskReward, nil
	case "expected_profit", "expected-profit", "ev":
		return SortByExpectedProfit, nil
	case "probability", "probability_of_profit", "pop":
		return SortByProbability, nil
	case "score", "strategy_score":
		return SortByScore, nil
	}
	return "", fmt.Errorf("unknown sort method %q", s)
}

// SearchParameters configures one search
type SearchParameters struct {
	Symbol           string     `json:"symbol" yaml:"symbol" validate:"required,max=16"`
	MaxMovePct       float64    `json:"max_move_pct" yaml:"max_move_pct" validate:"gt=0,lt=100"`
	MaxDelta         float64    `json:"max_delta" yaml:"max_delta" validate:"gt=0"`
	MinDTE           int        `json:"min_dte" yaml:"min_dte" validate:"gte=0"`
	MaxDTE           int        `json:"max_dte" yaml:"max_dte" validate:"gte=0,gtefield=MinDTE"`
	MinLiquidity     int64      `json:"min_liquidity" yaml:"min_liquidity" validate:"gte=0"`
	SpreadWidth      float64    `json:"spread_width" yaml:"spread_width" validate:"gt=0"`
	NumResults       int        `json:"num_results" yaml:"num_results" validate:"gte=0"`
	SortBy           SortMethod `json:"sort_by" yaml:"sort_by"`
	KeepBest         bool       `json:"keep_best" yaml:"keep_best"`
	RelaxedLiquidity bool       `json:"relaxed_liquidity" yaml:"relaxed_liquidity"`
	ChartTopN        int        `json:"chart_top_n" yaml:"chart_top_n" validate:"gte=0"`
}

// DefaultSearchParameters returns the parameters used when nothing is configured
func DefaultSearchParameters() SearchParameters {
	return SearchParameters{
		Symbol:       "$SPX",
		MaxMovePct:   2.0,
		MaxDelta:     0.01,
		MinDTE:       0,
		MaxDTE:       7,
		MinLiquidity: 10,
		SpreadWidth:  5,
		NumResults:   10,
		SortBy:       SortByRiskReward,
	}
}

// ValidationError describes one invalid search parameter
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationErrors collects every invalid field found in one pass
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	parts := make([]string, 0, len(ve))
	for _, e := range ve {
		parts = append(parts, e.Error())
	}
	return "invalid search parameters: " + strings.Join(parts, "; ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func paramValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the parameters before any chain processing. It returns
// ValidationErrors listing every offending field.
func (p SearchParameters) Validate() error {
	var out ValidationErrors

	if err := paramValidator().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate search parameters: %w", err)
		}
		for _, fe := range verrs {
			out = append(out, ValidationError{
				Field:   fe.Field(),
				Message: describeTag(fe),
				Value:   fe.Value(),
			})
		}
	}

	if p.SortBy != "" && !p.SortBy.IsValid() {
		out = append(out, ValidationError{
			Field:   "sort_by",
			Message: "must be one of risk_reward, expected_profit, probability, score",
			Value:   p.SortBy,
		})
	}

	if len(out) > 0 {
		return out
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gtefield":
		return "must not be less than min_dte"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// WithDefaults fills zero-valued optional fields
func (p SearchParameters) WithDefaults() SearchParameters {
	if p.SortBy == "" {
		p.SortBy = SortByRiskReward
	}
	p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol))
	return p
}

// StrikeRange returns the lower and upper bound of the price band
func StrikeRange(spot, maxMovePct float64) (lower, upper float64) {
	return spot * (1 - maxMovePct/100), spot * (1 + maxMovePct/100)
}
