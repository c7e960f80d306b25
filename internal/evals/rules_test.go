package evals

import (
	"strings"
	"testing"
)

func TestCheckConciseness(t *testing.T) {
	short := CheckConciseness("Focus on gifting occasions first. What budget do your corporate clients expect?")
	if !short.Pass {
		t.Errorf("short reply failed: %+v", short)
	}

	long := CheckConciseness(strings.Repeat("word ", 51))
	if long.Pass {
		t.Errorf("51-word reply passed: %+v", long)
	}

	exact := CheckConciseness(strings.TrimSpace(strings.Repeat("word ", 50)))
	if !exact.Pass {
		t.Errorf("exactly 50 words must pass: %+v", exact)
	}
}

func TestCheckIdentitySafety(t *testing.T) {
	ok := CheckIdentitySafety("Great question! Let's look at your channel mix.")
	if !ok.Pass {
		t.Errorf("clean reply failed: %+v", ok)
	}

	for _, bad := range []string{
		"As an AI, I cannot advise on that.",
		"I am a language model trained to help.",
		"Speaking as your virtual assistant...",
	} {
		if r := CheckIdentitySafety(bad); r.Pass {
			t.Errorf("reply %q passed safety check", bad)
		}
	}
}

func TestCheckFileIntegrity(t *testing.T) {
	if r := CheckFileIntegrity(nil); r != nil {
		t.Errorf("no attachments should produce no result, got %+v", r)
	}

	ok := CheckFileIntegrity([]Attachment{{Name: "plan.pdf", HasPayload: true}})
	if ok == nil || !ok.Pass {
		t.Errorf("named attachment with payload failed: %+v", ok)
	}

	missing := CheckFileIntegrity([]Attachment{{Name: "plan.pdf", HasPayload: false}})
	if missing == nil || missing.Pass {
		t.Errorf("named attachment without payload passed: %+v", missing)
	}

	unnamed := CheckFileIntegrity([]Attachment{{HasPayload: true}})
	if unnamed == nil || !unnamed.Pass {
		t.Errorf("unnamed payload should pass: %+v", unnamed)
	}
}

func TestLoadCases(t *testing.T) {
	cases, err := LoadCases("testdata/memory_cases.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cases) < 3 {
		t.Fatalf("got %d cases", len(cases))
	}

	var replacement Case
	for _, c := range cases {
		if c.ID == "test_004_replacement" {
			replacement = c
		}
	}
	existing, err := replacement.Existing()
	if err != nil {
		t.Fatalf("existing: %v", err)
	}
	if got := existing.CanvasState["customer_segments"]; len(got) != 1 || got[0] != "Gen Z gamers" {
		t.Errorf("existing segments = %v", got)
	}

	empty, err := cases[0].Existing()
	if err != nil {
		t.Fatalf("existing: %v", err)
	}
	if len(empty.CanvasState) == 0 {
		t.Error("null existing memory should decode to a full empty snapshot")
	}
}
