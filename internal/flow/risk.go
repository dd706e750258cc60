package flow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/certassist/internal/llmx"
)

// maxRelayPayload caps the serialized scanner report before relaying it
// to the model. Larger payloads are cut and marked.
const maxRelayPayload = 9000

const truncationMarker = "\n\n[Data truncated for safe processing]"

var riskRequiredFields = []string{
	"risk_score", "risk_category", "attack_type", "priority", "should_alert_user", "summary",
}

var playbookRequiredFields = []string{
	"risk_score", "risk_category", "priority", "attack_type", "summary",
}

// simplifyScannerReport strips the heavy raw data out of a scanner report
// so only analysis-relevant fields reach the model. Unknown shapes pass
// through untouched.
func simplifyScannerReport(report map[string]any) map[string]any {
	out := make(map[string]any, len(report))
	for k, v := range report {
		out[k] = v
	}

	if pe, ok := out["perceptual_embeddings"].(map[string]any); ok {
		slim := map[string]any{}
		if m, ok := pe["vector_model"]; ok {
			slim["vector_model"] = m
		}
		out["perceptual_embeddings"] = slim
	}

	if fv, ok := out["feature_vector_summary"].(map[string]any); ok {
		slim := make(map[string]any, len(fv))
		for k, v := range fv {
			slim[k] = v
		}
		if vec, ok := fv["numeric_vector"].([]any); ok && len(vec) > 8 {
			slim["numeric_vector"] = vec[:8]
			slim["vector_description"] = fmt.Sprintf("Numeric vector truncated to first 8 of %d values", len(vec))
		}
		out["feature_vector_summary"] = slim
	}

	if ocr, ok := out["ocr_and_text"].(map[string]any); ok {
		slim := make(map[string]any, len(ocr))
		for k, v := range ocr {
			slim[k] = v
		}
		if txt, ok := ocr["full_text"].(string); ok && len(txt) > 5000 {
			slim["full_text"] = txt[:5000]
		}
		out["ocr_and_text"] = slim
	}

	// Scanners emit faces either as a bare list or wrapped in an object
	// alongside a count. Both collapse to bbox-only detections.
	switch faces := out["faces"].(type) {
	case []any:
		out["faces"] = slimFaceList(faces)
	case map[string]any:
		if inner, ok := faces["faces"].([]any); ok {
			out["faces"] = slimFaceList(inner)
		}
	}

	return out
}

func slimFaceList(faces []any) map[string]any {
	slimFaces := make([]any, 0, len(faces))
	for _, f := range faces {
		fm, ok := f.(map[string]any)
		if !ok {
			continue
		}
		slim := map[string]any{}
		if b, ok := fm["bbox"]; ok {
			slim["bbox"] = b
		}
		slimFaces = append(slimFaces, slim)
	}
	return map[string]any{
		"face_count": len(faces),
		"detections": slimFaces,
	}
}

// prepareRelayPayload extracts the JSON object from the user text,
// simplifies it and renders it within the relay size cap. ok is false
// when the text carries no JSON object, or one that does not parse.
func prepareRelayPayload(text string) (payload string, ok bool) {
	raw, found := llmx.ExtractObject(text)
	if !found {
		return "", false
	}
	var report map[string]any
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		// Balanced braces but not valid JSON. Reject locally; invalid
		// input never reaches the model.
		return "", false
	}
	simplified := simplifyScannerReport(report)
	buf, err := json.MarshalIndent(simplified, "", "  ")
	if err != nil {
		return llmx.Truncate(raw, maxRelayPayload, truncationMarker), true
	}
	return llmx.Truncate(string(buf), maxRelayPayload, truncationMarker), true
}

// missingFields returns the required keys absent from the model's JSON
// answer, in required order.
func missingFields(obj map[string]any, required []string) []string {
	var missing []string
	for _, k := range required {
		if _, ok := obj[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// formatRiskResult renders the validated risk JSON for the user.
func formatRiskResult(obj map[string]any) string {
	var b strings.Builder
	b.WriteString("Risk Analysis Result\n\n")
	fmt.Fprintf(&b, "Risk Score: %v/100\n", obj["risk_score"])
	fmt.Fprintf(&b, "Category: %v\n", obj["risk_category"])
	fmt.Fprintf(&b, "Attack Type: %v\n", obj["attack_type"])
	fmt.Fprintf(&b, "Priority: %v\n", obj["priority"])
	fmt.Fprintf(&b, "Alert User: %v\n", obj["should_alert_user"])
	if summary, ok := obj["summary"].([]any); ok && len(summary) > 0 {
		b.WriteString("\nFindings:\n")
		for _, item := range summary {
			fmt.Fprintf(&b, "- %v\n", item)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
