package types

import "encoding/json"

// Analysis source values.
const (
	// AnalysisSourceGemini marks a result produced by the live
	// image analysis service.
	AnalysisSourceGemini = "gemini"

	// AnalysisSourceStub marks the deterministic local fallback.
	AnalysisSourceStub = "stub"
)

// Analysis is the structured result of analyzing an item's photo for
// recyclable material components.
//
// Source distinguishes a live result from the local fallback, and
// FallbackReason carries the failure that forced the fallback, so
// callers can tell a degraded response from a full success without
// parsing free text.
type Analysis struct {
	// Source is "gemini" for a live result or "stub" for the local
	// fallback.
	Source string `json:"source"`

	// RecyclableComponents lists candidate recyclable materials with
	// confidence scores in [0, 1].
	RecyclableComponents []Component `json:"recyclable_components"`

	// Raw is the unmodified response body from the live service.
	// Null for fallback results.
	Raw json.RawMessage `json:"raw"`

	// SuggestedTag is an informational disposition hint. It never
	// overrides the tag already assigned at submission.
	SuggestedTag Tag `json:"suggested_tag,omitempty"`

	// FallbackReason records why the live call failed when Source is
	// "stub" after an attempted live call. Empty otherwise.
	FallbackReason string `json:"error,omitempty"`
}

// Component is a single recyclable material candidate.
type Component struct {
	// Name is the material name (e.g. "copper", "plastic").
	Name string `json:"name"`

	// Confidence is the estimated likelihood in [0, 1] that the
	// material is present and recoverable.
	Confidence float64 `json:"confidence"`
}
