package domain

import "errors"

// Sentinel errors for the failure taxonomy. Callers classify failures with
// errors.Is and attach context by wrapping with fmt.Errorf("...: %w", err).
var (
	// ErrUnitConversion means a speed unit tag was not recognized. Fatal to
	// that observation only, never to the batch.
	ErrUnitConversion = errors.New("unrecognized speed unit")

	// ErrInsufficientData means an explicitly requested day had zero samples.
	ErrInsufficientData = errors.New("no observations for requested day")

	// ErrSourceFailure means a source failed after exhausting retries and is
	// excluded from the merged dataset for the site.
	ErrSourceFailure = errors.New("source failed")

	// ErrInsufficientSample means too few block maxima were available to
	// attempt an extreme-value fit.
	ErrInsufficientSample = errors.New("too few block maxima to fit")

	// ErrFitDivergence means a fit produced a non-positive scale or
	// non-finite parameters. The fit is reported failed, never clamped.
	ErrFitDivergence = errors.New("fit produced invalid parameters")
)
