package globussync

import (
	"context"
	"errors"
	"testing"

	"github.com/gestaofrota/globus_backend/models"
	"github.com/gestaofrota/globus_backend/utils"
)

func TestMemoryScopeGuard_RejectsSecondAcquire(t *testing.T) {
	guard := NewMemoryScopeGuard()
	ctx := context.Background()

	release, err := guard.Acquire(ctx, models.DominioMultas)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	if _, err := guard.Acquire(ctx, models.DominioMultas); !errors.Is(err, utils.ErrSyncAlreadyInProgress) {
		t.Fatalf("expected ErrSyncAlreadyInProgress, got %v", err)
	}

	release()
	release2, err := guard.Acquire(ctx, models.DominioMultas)
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	release2()
}

func TestMemoryScopeGuard_DomainsAreIndependent(t *testing.T) {
	guard := NewMemoryScopeGuard()
	ctx := context.Background()

	rel1, err := guard.Acquire(ctx, models.DominioMultas)
	if err != nil {
		t.Fatalf("acquire multas failed: %v", err)
	}
	defer rel1()

	rel2, err := guard.Acquire(ctx, models.DominioFrota)
	if err != nil {
		t.Fatalf("a held multas scope must not block frota: %v", err)
	}
	defer rel2()
}
