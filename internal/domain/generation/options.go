package generation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/uniedit/imagegen/internal/model"
)

// Option keys accepted by Normalize.
const (
	OptionModel          = "model"
	OptionNegativePrompt = "negative_prompt"
	OptionWidth          = "width"
	OptionHeight         = "height"
	OptionSteps          = "steps"
	OptionGuidance       = "guidance"
	OptionScheduler      = "scheduler"
)

// Default option values.
const (
	DefaultModel          = "realistic-vision-v3"
	DefaultNegativePrompt = "disfigured, cartoon, blurry"
	DefaultWidth          = 384
	DefaultHeight         = 384
	DefaultSteps          = 10
	DefaultGuidance       = 7.5
	DefaultScheduler      = "dpmsolver++"

	// OutputFormat is fixed and cannot be overridden by callers.
	OutputFormat = "png"
)

// DefaultOptionSet returns the option set used when a caller supplies nothing.
func DefaultOptionSet() model.OptionSet {
	return model.OptionSet{
		Model:          DefaultModel,
		NegativePrompt: DefaultNegativePrompt,
		Width:          DefaultWidth,
		Height:         DefaultHeight,
		Steps:          DefaultSteps,
		Guidance:       DefaultGuidance,
		Scheduler:      DefaultScheduler,
		OutputFormat:   OutputFormat,
	}
}

// Normalize merges raw caller options over the defaults.
// It never fails: values of the wrong type or out of range keep the default,
// and unknown keys are ignored.
func Normalize(raw map[string]any) model.OptionSet {
	opts := DefaultOptionSet()
	if len(raw) == 0 {
		return opts
	}

	if v, ok := nonEmptyString(raw[OptionModel]); ok {
		opts.Model = v
	}
	if v, ok := raw[OptionNegativePrompt].(string); ok {
		opts.NegativePrompt = v
	}
	if v, ok := positiveInt(raw[OptionWidth]); ok {
		opts.Width = v
	}
	if v, ok := positiveInt(raw[OptionHeight]); ok {
		opts.Height = v
	}
	if v, ok := positiveInt(raw[OptionSteps]); ok {
		opts.Steps = v
	}
	if v, ok := toFloat(raw[OptionGuidance]); ok && v >= 0 {
		opts.Guidance = v
	}
	if v, ok := nonEmptyString(raw[OptionScheduler]); ok {
		opts.Scheduler = v
	}

	return opts
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func positiveInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
