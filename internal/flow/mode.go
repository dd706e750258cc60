package flow

// ModeKind enumerates the conversation modes. Exactly one mode is active
// per session at any time; mode changes replace the whole value, so two
// modes can never be set at once.
type ModeKind int

const (
	ModeIdle ModeKind = iota
	ModeGuidedReport
	ModeEvidence
	ModeRiskAnalysis
	ModePlaybook
	ModeStatusLookup
)

// Mode is the tagged conversation state. Step is only meaningful for
// ModeGuidedReport, where it indexes the active interview field.
type Mode struct {
	Kind ModeKind
	Step int
}

// Quick actions a transport can trigger.
const (
	ActionFileReport   = "file_report"
	ActionRiskAnalysis = "risk_analysis"
	ActionPlaybook     = "playbook"
	ActionCheckStatus  = "check_status"
	ActionNewChat      = "new_chat"
)
