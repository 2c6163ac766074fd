package globussync

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gestaofrota/globus_backend/models"
)

func TestBuildLegacyQuery_WindowOnly(t *testing.T) {
	binding := bindingFor(models.DominioMultas)
	scope := Scope{
		Dominio: models.DominioMultas,
		Inicio:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Fim:     time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
	}

	query, args := buildLegacyQuery(binding, scope)
	if !strings.Contains(query, "FROM GLOBUS.MUL_MULTAS") {
		t.Fatalf("wrong table: %s", query)
	}
	if !strings.Contains(query, "DAT_ALTERACAO >= :1 AND DAT_ALTERACAO < :2") {
		t.Fatalf("window predicate missing: %s", query)
	}
	if !strings.Contains(query, "ORDER BY NRO_AIT") {
		t.Fatalf("stable ordering missing: %s", query)
	}
	if !strings.Contains(query, "OFFSET :3 ROWS FETCH NEXT :4 ROWS ONLY") {
		t.Fatalf("pagination binds misnumbered: %s", query)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 base args, got %d", len(args))
	}
}

func TestBuildLegacyQuery_KeyFilterShiftsBinds(t *testing.T) {
	binding := bindingFor(models.DominioFrota)
	scope := Scope{
		Dominio: models.DominioFrota,
		Inicio:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Fim:     time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Chaves:  []string{"2041", "2042"},
	}

	query, args := buildLegacyQuery(binding, scope)
	if !strings.Contains(query, "PREFIXO_VEIC IN (:3, :4)") {
		t.Fatalf("key filter binds wrong: %s", query)
	}
	if !strings.Contains(query, "OFFSET :5 ROWS FETCH NEXT :6 ROWS ONLY") {
		t.Fatalf("pagination binds must follow key binds: %s", query)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 base args, got %d", len(args))
	}
}

func TestRecordStream_PullsPagesLazily(t *testing.T) {
	calls := 0
	all := []LegacyRecord{
		{Identity: "1"}, {Identity: "2"}, {Identity: "3"},
		{Identity: "4"}, {Identity: "5"},
	}
	s := &RecordStream{pageSize: 2}
	s.fetchPage = func(offset int) ([]LegacyRecord, error) {
		calls++
		if offset >= len(all) {
			return nil, nil
		}
		end := offset + 2
		if end > len(all) {
			end = len(all)
		}
		return all[offset:end], nil
	}

	var got []string
	for {
		rec, ok, err := s.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, rec.Identity)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 records, got %d", len(got))
	}
	// 2+2+1: the short last page ends the stream without an extra probe.
	if calls != 3 {
		t.Fatalf("expected 3 page fetches, got %d", calls)
	}
}

func TestRecordStream_ErrorIsTerminal(t *testing.T) {
	s := &RecordStream{pageSize: 2}
	s.fetchPage = func(offset int) ([]LegacyRecord, error) {
		return nil, errTest
	}

	if _, _, err := s.Next(); err != errTest {
		t.Fatalf("expected stream error, got %v", err)
	}
	// Subsequent calls keep returning the same terminal error.
	if _, _, err := s.Next(); err != errTest {
		t.Fatalf("stream error must be sticky, got %v", err)
	}
}

var errTest = errors.New("test failure")
