package convert

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Option keys accepted by NewOptions.
const (
	optFirstPage    = "first_page"
	optLastPage     = "last_page"
	optOutputFormat = "output_format"
)

// Output format selectors. An empty selector keeps every format the
// strategy produces.
const (
	OutputFormatText = "text"
	OutputFormatXML  = "xml"
)

var validate = validator.New()

// Options narrows what a conversion extracts: the page range poppler reads
// and, optionally, a single output format instead of the full set.
type Options struct {
	FirstPage    int    `validate:"gte=1"`
	LastPage     int    `validate:"gtefield=FirstPage"`
	OutputFormat string `validate:"omitempty,oneof=text xml"`
}

// DefaultOptions covers the first page and every output format.
func DefaultOptions() Options {
	return Options{FirstPage: 1, LastPage: 1}
}

// NewOptions builds Options from loosely typed caller input. Unknown keys,
// non-integer pages and unknown formats are rejected with *ValidationError.
func NewOptions(raw map[string]any) (Options, error) {
	opts := DefaultOptions()
	for key, value := range raw {
		switch key {
		case optFirstPage:
			n, err := intOption(key, value)
			if err != nil {
				return Options{}, err
			}
			opts.FirstPage = n
		case optLastPage:
			n, err := intOption(key, value)
			if err != nil {
				return Options{}, err
			}
			opts.LastPage = n
		case optOutputFormat:
			s, ok := value.(string)
			if !ok {
				return Options{}, &ValidationError{Field: key, Reason: fmt.Sprintf("expected string, got %T", value)}
			}
			opts.OutputFormat = s
		default:
			return Options{}, &ValidationError{Field: key, Reason: "unknown option"}
		}
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate checks page range coherence and the format selector. Failures
// come back as *ValidationError in the option key vocabulary callers use.
func (o Options) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return optionError(verrs[0])
	}
	return &ValidationError{Reason: err.Error()}
}

func optionError(fe validator.FieldError) *ValidationError {
	switch fe.StructField() {
	case "FirstPage":
		return &ValidationError{Field: optFirstPage, Reason: "must be at least 1"}
	case "LastPage":
		return &ValidationError{Field: optLastPage, Reason: "must not precede first_page"}
	default:
		return &ValidationError{Field: optOutputFormat, Reason: fmt.Sprintf("unknown output format %q", fe.Value())}
	}
}

// intOption accepts native ints and the float64 values JSON decoding yields.
func intOption(key string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		if v != float64(int(v)) {
			return 0, &ValidationError{Field: key, Reason: "must be a whole number"}
		}
		return int(v), nil
	default:
		return 0, &ValidationError{Field: key, Reason: fmt.Sprintf("expected integer, got %T", value)}
	}
}
