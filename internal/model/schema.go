// Package model holds the data types shared by the normalizer, selector and
// mode scorer.
package model

// SchemaID is a canonical, lowercase schema identifier.
type SchemaID string

// ModeID is a lowercase mode identifier.
type ModeID string

// Gate is a lowercase context-gate name.
type Gate string

// CanonicalSchemaIDs is the fixed 18-id schema vocabulary, sorted.
var CanonicalSchemaIDs = []SchemaID{
	"abandonment_instability",
	"approval_seeking",
	"defectiveness_shame",
	"dependence_incompetence",
	"emotional_deprivation",
	"emotional_inhibition",
	"enmeshment_undeveloped_self",
	"entitlement_grandiosity",
	"failure",
	"insufficient_self_control",
	"mistrust_abuse",
	"negativity_pessimism",
	"punitiveness",
	"self_sacrifice",
	"social_isolation_alienation",
	"subjugation",
	"unrelenting_standards",
	"vulnerability_to_harm",
}

// Family is a coping family: Surrender, Avoidance or Overcompensation.
type Family string

const (
	FamilySurrender        Family = "S"
	FamilyAvoidance        Family = "A"
	FamilyOvercompensation Family = "O"
)

// Families lists the coping families in canonical order.
var Families = []Family{FamilySurrender, FamilyAvoidance, FamilyOvercompensation}
