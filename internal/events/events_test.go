package events

import "testing"

func TestDecodeWrappedPayload(t *testing.T) {
	data := []byte(`{"operation": {"id": "f1", "type": "write", "filePath": "pkg/io.go", "success": true}}`)
	op, err := DecodeFileOperation(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if op.ID != "f1" || op.FilePath != "pkg/io.go" || !op.Success {
		t.Fatalf("decoded wrong: %+v", op)
	}
}

func TestDecodeFlatPayloadTolerated(t *testing.T) {
	// Older backends send the payload without the wrapper key.
	data := []byte(`{"id": "f1", "type": "write", "filePath": "pkg/io.go", "success": true}`)
	op, err := DecodeFileOperation(data)
	if err != nil {
		t.Fatalf("decode flat: %v", err)
	}
	if op.ID != "f1" {
		t.Fatalf("flat payload not decoded: %+v", op)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	if _, err := DecodePlan([]byte(`{"plan": "not an object"}`)); err == nil {
		t.Fatal("malformed inner payload must error")
	}
	if _, err := DecodePlan([]byte(`not json`)); err == nil {
		t.Fatal("malformed envelope must error")
	}
}

func TestDecodeActionFragmentDistinguishesAbsentFromEmpty(t *testing.T) {
	frag, err := DecodeActionFragment([]byte(`{"action": {"id": "a1", "title": ""}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frag.Title == nil || *frag.Title != "" {
		t.Fatalf("explicit empty title must decode as set: %+v", frag.Title)
	}
	if frag.Description != nil {
		t.Fatal("absent description must decode as nil")
	}
}

func TestDecodePermissionRequiredIsFlat(t *testing.T) {
	data := []byte(`{"actionId": "a1", "reason": "writes /etc", "scope": {"type": "filesystem", "path": "/etc/hosts", "risk": "high"}}`)
	req, err := DecodePermissionRequired(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.ActionID != "a1" || req.Scope.Type != "filesystem" || req.Scope.Risk != "high" {
		t.Fatalf("decoded wrong: %+v", req)
	}
}

func TestDecodePlanWithSteps(t *testing.T) {
	data := []byte(`{"plan": {"id": "p1", "description": "ship", "entryPoint": "main.py",
		"steps": [{"id": "s1", "title": "build", "status": "running"}, {"id": "s2", "title": "test"}]}}`)
	plan, err := DecodePlan(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(plan.Steps) != 2 || plan.Steps[0].Status != "running" {
		t.Fatalf("steps wrong: %+v", plan.Steps)
	}
}

func TestChannelsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, ch := range Channels() {
		if seen[ch] {
			t.Fatalf("duplicate channel %q", ch)
		}
		seen[ch] = true
	}
	if len(seen) != 20 {
		t.Fatalf("expected 20 channels, got %d", len(seen))
	}
}
