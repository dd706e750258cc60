package flow

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSimplifyScannerReport(t *testing.T) {
	vec := make([]any, 20)
	for i := range vec {
		vec[i] = float64(i)
	}
	report := map[string]any{
		"scanner": "imagecheck",
		"perceptual_embeddings": map[string]any{
			"vector_model": "clip-vit",
			"embedding":    vec,
		},
		"feature_vector_summary": map[string]any{
			"numeric_vector": vec,
			"dimensions":     20,
		},
		"ocr_and_text": map[string]any{
			"full_text": strings.Repeat("x", 6000),
			"language":  "en",
		},
		"faces": []any{
			map[string]any{"bbox": []any{1, 2, 3, 4}, "landmarks": "huge blob"},
			map[string]any{"bbox": []any{5, 6, 7, 8}, "landmarks": "huge blob"},
		},
	}

	out := simplifyScannerReport(report)

	pe := out["perceptual_embeddings"].(map[string]any)
	if _, ok := pe["embedding"]; ok {
		t.Error("raw embedding must be dropped")
	}
	if pe["vector_model"] != "clip-vit" {
		t.Errorf("vector_model lost: %v", pe)
	}

	fv := out["feature_vector_summary"].(map[string]any)
	if got := len(fv["numeric_vector"].([]any)); got != 8 {
		t.Errorf("numeric_vector len = %d, want 8", got)
	}
	if _, ok := fv["vector_description"]; !ok {
		t.Error("expected vector_description after truncation")
	}
	if fv["dimensions"] != 20 {
		t.Errorf("unrelated keys must survive: %v", fv)
	}

	ocr := out["ocr_and_text"].(map[string]any)
	if got := len(ocr["full_text"].(string)); got != 5000 {
		t.Errorf("full_text len = %d, want 5000", got)
	}

	faces := out["faces"].(map[string]any)
	if faces["face_count"] != 2 {
		t.Errorf("face_count = %v, want 2", faces["face_count"])
	}
	det := faces["detections"].([]any)
	if _, ok := det[0].(map[string]any)["landmarks"]; ok {
		t.Error("face detections must keep bbox only")
	}

	// Input untouched.
	if _, ok := report["faces"].([]any); !ok {
		t.Error("simplify must not mutate its input")
	}
}

func TestSimplifyScannerReportNestedFaces(t *testing.T) {
	report := map[string]any{
		"faces": map[string]any{
			"face_count": float64(2),
			"faces": []any{
				map[string]any{"bbox": []any{1, 2, 3, 4}, "landmarks": "huge blob"},
				map[string]any{"bbox": []any{5, 6, 7, 8}, "embedding": "huge blob"},
			},
		},
	}

	out := simplifyScannerReport(report)

	faces := out["faces"].(map[string]any)
	if faces["face_count"] != 2 {
		t.Errorf("face_count = %v, want 2", faces["face_count"])
	}
	det := faces["detections"].([]any)
	if len(det) != 2 {
		t.Fatalf("detections = %v, want 2 entries", det)
	}
	for _, d := range det {
		dm := d.(map[string]any)
		if _, ok := dm["landmarks"]; ok {
			t.Error("face detections must keep bbox only")
		}
		if _, ok := dm["embedding"]; ok {
			t.Error("face detections must keep bbox only")
		}
		if _, ok := dm["bbox"]; !ok {
			t.Errorf("bbox lost: %v", dm)
		}
	}
}

func TestPrepareRelayPayload(t *testing.T) {
	if _, ok := prepareRelayPayload("nothing structured"); ok {
		t.Error("plain text must not produce a payload")
	}

	if _, ok := prepareRelayPayload("{oops not json}"); ok {
		t.Error("balanced but invalid JSON must not produce a payload")
	}

	payload, ok := prepareRelayPayload(`see attached: {"scanner": "x", "score": 3} thanks`)
	if !ok {
		t.Fatal("embedded object not extracted")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if obj["scanner"] != "x" {
		t.Errorf("payload content lost: %v", obj)
	}
}

func TestPrepareRelayPayloadCapsSize(t *testing.T) {
	big := map[string]any{"notes": strings.Repeat("a", 20000)}
	raw, _ := json.Marshal(big)

	payload, ok := prepareRelayPayload(string(raw))
	if !ok {
		t.Fatal("large object not extracted")
	}
	if len(payload) > maxRelayPayload+len(truncationMarker) {
		t.Errorf("payload length %d exceeds cap", len(payload))
	}
	if !strings.HasSuffix(payload, truncationMarker) {
		t.Error("expected truncation marker on capped payload")
	}
}

func TestMissingFields(t *testing.T) {
	obj := map[string]any{"risk_score": 10, "summary": []any{}}
	missing := missingFields(obj, riskRequiredFields)
	want := []string{"risk_category", "attack_type", "priority", "should_alert_user"}
	if len(missing) != len(want) {
		t.Fatalf("missing = %v, want %v", missing, want)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Fatalf("missing = %v, want %v", missing, want)
		}
	}
}
