package validation_test

import (
	"bytes"
	"errors"
	"testing"

	"scoreframe/internal/services"
	"scoreframe/internal/validation"
)

const minimalXML = `<?xml version="1.0"?><score-partwise version="3.1"></score-partwise>`

func TestCheckAcceptsMusicXML(t *testing.T) {
	for _, name := range []string{"tune.musicxml", "tune.xml", "TUNE.XML"} {
		if err := validation.Check([]byte(minimalXML), name, 1<<20); err != nil {
			t.Errorf("Check(%q) rejected valid payload: %v", name, err)
		}
	}
}

func TestCheckAcceptsXMLWithBOMAndWhitespace(t *testing.T) {
	payload := append([]byte{0xEF, 0xBB, 0xBF}, []byte("\n  "+minimalXML)...)
	if err := validation.Check(payload, "tune.xml", 1<<20); err != nil {
		t.Fatalf("Check rejected BOM-prefixed XML: %v", err)
	}
}

func TestCheckRejectsEmptyPayload(t *testing.T) {
	err := validation.Check(nil, "tune.xml", 1<<20)
	if err == nil {
		t.Fatal("expected rejection")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	reason, ok := validation.ReasonOf(err)
	if !ok || reason != validation.ReasonEmptyPayload {
		t.Fatalf("unexpected reason %q (ok=%v)", reason, ok)
	}
}

func TestCheckRejectsOversizePayload(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 100)
	err := validation.Check(payload, "tune.xml", 99)
	if err == nil {
		t.Fatal("expected rejection")
	}
	reason, _ := validation.ReasonOf(err)
	if reason != validation.ReasonSizeExceedsLimit {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestCheckAcceptsPayloadAtLimit(t *testing.T) {
	if err := validation.Check([]byte(minimalXML), "tune.xml", int64(len(minimalXML))); err != nil {
		t.Fatalf("payload exactly at limit should pass: %v", err)
	}
}

func TestCheckRejectsUnsupportedExtension(t *testing.T) {
	for _, name := range []string{"notes.pdf", "song.midi", "noext", "archive.zip"} {
		err := validation.Check([]byte(minimalXML), name, 1<<20)
		if err == nil {
			t.Errorf("Check(%q) should have rejected", name)
			continue
		}
		reason, _ := validation.ReasonOf(err)
		if reason != validation.ReasonUnsupportedExtension {
			t.Errorf("Check(%q) reason = %q, want unsupported extension", name, reason)
		}
	}
}

func TestCheckRejectsNonXMLContent(t *testing.T) {
	err := validation.Check([]byte("definitely not xml"), "tune.xml", 1<<20)
	if err == nil {
		t.Fatal("expected rejection")
	}
	reason, _ := validation.ReasonOf(err)
	if reason != validation.ReasonMalformedContainer {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestCheckMXLMagic(t *testing.T) {
	if err := validation.Check([]byte("PK\x03\x04rest-of-zip"), "tune.mxl", 1<<20); err != nil {
		t.Fatalf("zip-prefixed mxl should pass pre-check: %v", err)
	}
	err := validation.Check([]byte(minimalXML), "tune.mxl", 1<<20)
	if err == nil {
		t.Fatal("plain xml named .mxl should fail the container check")
	}
	reason, _ := validation.ReasonOf(err)
	if reason != validation.ReasonMalformedContainer {
		t.Fatalf("unexpected reason %q", reason)
	}
}
