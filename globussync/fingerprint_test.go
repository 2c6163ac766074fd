package globussync

import (
	"errors"
	"testing"

	"github.com/gestaofrota/globus_backend/models"
	"github.com/gestaofrota/globus_backend/utils"
)

func TestFingerprint_DeterministicAcrossKeyOrder(t *testing.T) {
	a := LegacyRecord{
		Dominio:  models.DominioMultas,
		Identity: "AIT-001",
		Payload:  map[string]string{"placa": "ABC1D23", "valor": "150.00", "codigo_infracao": "745-50"},
	}
	// Same logical content, map built in a different order.
	b := LegacyRecord{
		Dominio:  models.DominioMultas,
		Identity: "AIT-001",
		Payload:  map[string]string{"codigo_infracao": "745-50", "valor": "150.00", "placa": "ABC1D23"},
	}

	fa, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fb, err := Fingerprint(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fa != fb {
		t.Fatalf("fingerprints differ for identical payloads: %s vs %s", fa, fb)
	}
	if len(fa) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(fa))
	}
}

func TestFingerprint_ChangesWhenValueChanges(t *testing.T) {
	base := map[string]string{"placa": "ABC1D23", "valor": "150.00"}
	changed := map[string]string{"placa": "ABC1D23", "valor": "195.23"}

	fa, _ := Fingerprint(LegacyRecord{Identity: "AIT-001", Payload: base})
	fb, _ := Fingerprint(LegacyRecord{Identity: "AIT-001", Payload: changed})
	if fa == fb {
		t.Fatalf("expected different fingerprints after value change")
	}
}

func TestFingerprint_AbsentFieldEqualsNull(t *testing.T) {
	// The mappers never write null/empty values into the payload, so a
	// record whose optional field went from SQL NULL to '' must hash the
	// same both times.
	withNull := map[string]string{"placa": "ABC1D23"}
	withEmptyOmitted := map[string]string{"placa": "ABC1D23"}

	fa, _ := Fingerprint(LegacyRecord{Identity: "AIT-001", Payload: withNull})
	fb, _ := Fingerprint(LegacyRecord{Identity: "AIT-001", Payload: withEmptyOmitted})
	if fa != fb {
		t.Fatalf("null and omitted-empty must fingerprint identically")
	}
}

func TestFingerprint_BlankIdentityRejected(t *testing.T) {
	_, err := Fingerprint(LegacyRecord{Identity: "   ", Payload: map[string]string{"placa": "ABC1D23"}})
	if !errors.Is(err, utils.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestCanonicalPayload_SortedLineFormat(t *testing.T) {
	got := CanonicalPayload(map[string]string{"b": "2", "a": "1"})
	want := "a=1\nb=2\n"
	if got != want {
		t.Fatalf("canonical form mismatch: got %q want %q", got, want)
	}
	if CanonicalPayload(nil) != "" {
		t.Fatalf("empty payload must canonicalize to empty string")
	}
}
