package report

import (
	"encoding/json"

	"github.com/user/certassist/internal/types"
)

// EvidenceMeta is the reduced attachment record carried in the submission
// payload. Local file paths never leave this host.
type EvidenceMeta struct {
	ID       types.AttachmentID `json:"id"`
	Name     string             `json:"name"`
	ByteSize int64              `json:"size"`
	MimeType string             `json:"mimeType"`
}

// Draft is the complaint being assembled field by field. It is owned by a
// single conversation and reset whenever the guided flow restarts.
type Draft struct {
	values   map[string]string
	evidence []EvidenceMeta
}

// NewDraft returns an empty draft with every schema key present.
func NewDraft() *Draft {
	d := &Draft{}
	d.Reset()
	return d
}

// Reset clears all collected values and evidence.
func (d *Draft) Reset() {
	d.values = make(map[string]string, len(Fields))
	for _, f := range Fields {
		d.values[f.Key] = ""
	}
	d.evidence = nil
}

// Set stores a validated answer under the field key.
func (d *Draft) Set(key, value string) {
	d.values[key] = value
}

// Get returns the collected value for a field key.
func (d *Draft) Get(key string) string {
	return d.values[key]
}

// AddEvidence appends metadata for one collected attachment.
func (d *Draft) AddEvidence(ref types.AttachmentRef) {
	d.evidence = append(d.evidence, EvidenceMeta{
		ID:       ref.ID,
		Name:     ref.Name,
		ByteSize: ref.ByteSize,
		MimeType: ref.MimeType,
	})
}

// Evidence returns the collected evidence metadata.
func (d *Draft) Evidence() []EvidenceMeta {
	return d.evidence
}

// Payload is the finalized submission shape accepted by the complaint
// backend: all reporter fields plus sanitized evidence metadata.
type Payload struct {
	Name            string         `json:"name"`
	Role            string         `json:"role"`
	Department      string         `json:"department"`
	Location        string         `json:"location"`
	ComplaintType   string         `json:"complaintType"`
	IncidentDate    string         `json:"incidentDate"`
	IncidentTime    string         `json:"incidentTime"`
	Description     string         `json:"description"`
	SuspectedSource string         `json:"suspectedSource"`
	Evidences       []EvidenceMeta `json:"evidences"`
}

// Payload assembles the submission payload from the collected values.
func (d *Draft) Payload() Payload {
	ev := d.evidence
	if ev == nil {
		ev = []EvidenceMeta{}
	}
	return Payload{
		Name:            d.values["name"],
		Role:            d.values["role"],
		Department:      d.values["department"],
		Location:        d.values["location"],
		ComplaintType:   d.values["complaintType"],
		IncidentDate:    d.values["incidentDate"],
		IncidentTime:    d.values["incidentTime"],
		Description:     d.values["description"],
		SuspectedSource: d.values["suspectedSource"],
		Evidences:       ev,
	}
}

// Render returns the indented JSON form of the payload, shown to the user
// at finalization.
func (d *Draft) Render() string {
	data, err := json.MarshalIndent(d.Payload(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
