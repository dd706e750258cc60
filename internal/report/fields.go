// Package report holds the guided-report field schema, the answer
// validator, and the in-progress draft assembled by the conversation flow.
package report

// Format constrains how a field's answer is checked beyond length bounds.
type Format int

const (
	FormatFreeText Format = iota
	FormatDate            // YYYY-MM-DD, syntax only
	FormatTime            // HH:MM, syntax only
	FormatEnum            // one of Field.Options, case-insensitive
)

// Field describes one interview question. The Fields slice order is the
// interview order; neither is mutated at runtime.
type Field struct {
	Key     string
	Prompt  string
	Min     int
	Max     int
	Format  Format
	Options []string
}

// RoleOptions are the accepted answers for the reporter-role field.
var RoleOptions = []string{
	"defence personnel",
	"ex veteran/retired officer",
	"family member / dependent",
	"MoD authority",
}

// Fields is the interview sequence for filing a complaint.
var Fields = []Field{
	{Key: "name", Prompt: "What is your full name?", Min: 3, Max: 50},
	{
		Key:     "role",
		Prompt:  "Select your role: defence personnel, ex veteran/retired officer, family member / dependent, or MoD authority.",
		Min:     5,
		Max:     40,
		Format:  FormatEnum,
		Options: RoleOptions,
	},
	{Key: "department", Prompt: "Enter your Department / Unit:", Min: 2, Max: 50},
	{Key: "location", Prompt: "Enter your Location / Station:", Min: 2, Max: 50},
	{Key: "complaintType", Prompt: "What is the complaint type?", Min: 3, Max: 50},
	{Key: "incidentDate", Prompt: "Enter the incident date (YYYY-MM-DD):", Min: 8, Max: 10, Format: FormatDate},
	{Key: "incidentTime", Prompt: "Enter the incident time (HH:MM):", Min: 4, Max: 5, Format: FormatTime},
	{Key: "description", Prompt: "Describe the incident in detail:", Min: 20, Max: 500},
	{Key: "suspectedSource", Prompt: `Who or what is the suspected source? (you can write "unknown")`, Min: 3, Max: 100},
}
