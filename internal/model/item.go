package model

// ConversionMethod records how a NormalizedItem's T-score was produced.
type ConversionMethod string

const (
	MethodTScoreProvided     ConversionMethod = "tscore_provided"
	MethodRawToTScore        ConversionMethod = "raw_to_tscore"
	MethodPercentileToTScore ConversionMethod = "percentile_to_tscore"
)

// T-score band every normalized item lies in.
const (
	MinTScore = 20.0
	MaxTScore = 80.0
)

// Instrument identifies the assessment instrument a batch of responses came from.
type Instrument struct {
	Name    string `json:"instrument_name"`
	Version string `json:"instrument_version,omitempty"`
}

// Label returns "name@version", or just the name when no version is set.
func (i Instrument) Label() string {
	if i.Version == "" {
		return i.Name
	}
	return i.Name + "@" + i.Version
}

// RawItemResponse is a single item response as submitted. Exactly one of
// TScore, Raw or Percentile is used, in that priority order.
type RawItemResponse struct {
	ID         string   `json:"id"`
	SchemaID   string   `json:"schema_id"`
	Raw        *float64 `json:"raw,omitempty"`
	TScore     *float64 `json:"tscore,omitempty"`
	Percentile *float64 `json:"percentile,omitempty"`
	Reverse    bool     `json:"reverse,omitempty"`
	Weight     *float64 `json:"weight,omitempty"`
}

// NormalizedItem is an item response converted to a T-score.
type NormalizedItem struct {
	ItemID     string           `json:"item_id"`
	SchemaID   SchemaID         `json:"schema_id"`
	TScore     float64          `json:"tscore"`
	Method     ConversionMethod `json:"conversion_method"`
	Instrument string           `json:"instrument"`
	Weight     float64          `json:"weight"`
	Reversed   bool             `json:"reversed,omitempty"`
	Clamped    bool             `json:"clamped,omitempty"`
}

// ItemFailure reports why a single item could not be normalized.
type ItemFailure struct {
	ItemID   string `json:"item_id"`
	SchemaID string `json:"schema_id,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}
