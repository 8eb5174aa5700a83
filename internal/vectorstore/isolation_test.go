package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func ownerCtx(id string) context.Context {
	return ContextWithOwner(context.Background(), &OwnerInfo{OwnerID: id})
}

func TestOwnerContext(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		owner, err := OwnerFromContext(ownerCtx("user-1"))
		if err != nil {
			t.Fatalf("OwnerFromContext() error = %v", err)
		}
		if owner.OwnerID != "user-1" {
			t.Errorf("OwnerID = %q", owner.OwnerID)
		}
	})

	t.Run("missing owner fails closed", func(t *testing.T) {
		if _, err := OwnerFromContext(context.Background()); !errors.Is(err, ErrMissingOwner) {
			t.Errorf("error = %v, want ErrMissingOwner", err)
		}
	})

	t.Run("empty owner id invalid", func(t *testing.T) {
		owner := &OwnerInfo{}
		if err := owner.Validate(); !errors.Is(err, ErrInvalidOwner) {
			t.Errorf("Validate() = %v, want ErrInvalidOwner", err)
		}
	})
}

func TestPayloadIsolation(t *testing.T) {
	iso := NewPayloadIsolation()

	t.Run("injects owner filter", func(t *testing.T) {
		filters, err := iso.InjectFilter(ownerCtx("user-1"), map[string]interface{}{"category": "Work"})
		if err != nil {
			t.Fatalf("InjectFilter() error = %v", err)
		}
		if filters["owner_id"] != "user-1" {
			t.Errorf("owner_id = %v", filters["owner_id"])
		}
		if filters["category"] != "Work" {
			t.Errorf("category filter lost: %v", filters)
		}
	})

	t.Run("missing owner fails closed", func(t *testing.T) {
		if _, err := iso.InjectFilter(context.Background(), nil); !errors.Is(err, ErrMissingOwner) {
			t.Errorf("InjectFilter() error = %v, want ErrMissingOwner", err)
		}
		if err := iso.InjectMetadata(context.Background(), []Document{{ID: "1"}}); !errors.Is(err, ErrMissingOwner) {
			t.Errorf("InjectMetadata() error = %v, want ErrMissingOwner", err)
		}
	})

	t.Run("missing owner increments the rejection counter", func(t *testing.T) {
		before := testutil.ToFloat64(IsolationRejections)
		_, _ = iso.InjectFilter(context.Background(), nil)
		_ = iso.InjectMetadata(context.Background(), []Document{{ID: "1"}})
		_ = iso.ValidateOwner(context.Background())
		if got := testutil.ToFloat64(IsolationRejections) - before; got != 3 {
			t.Errorf("IsolationRejections delta = %v, want 3", got)
		}
	})

	t.Run("rejects owner field in user filters", func(t *testing.T) {
		_, err := iso.InjectFilter(ownerCtx("user-1"), map[string]interface{}{"owner_id": "user-2"})
		if !errors.Is(err, ErrOwnerFilterInUserFilters) {
			t.Errorf("error = %v, want ErrOwnerFilterInUserFilters", err)
		}
	})

	t.Run("metadata injection overwrites forged owner", func(t *testing.T) {
		docs := []Document{{ID: "1", Metadata: map[string]interface{}{"owner_id": "attacker"}}}
		if err := iso.InjectMetadata(ownerCtx("user-1"), docs); err != nil {
			t.Fatalf("InjectMetadata() error = %v", err)
		}
		if docs[0].Metadata["owner_id"] != "user-1" {
			t.Errorf("owner_id = %v, want context owner", docs[0].Metadata["owner_id"])
		}
	})
}

func TestNoIsolation(t *testing.T) {
	iso := NewNoIsolation()
	filters, err := iso.InjectFilter(context.Background(), map[string]interface{}{"a": "b"})
	if err != nil {
		t.Fatalf("InjectFilter() error = %v", err)
	}
	if filters["a"] != "b" {
		t.Errorf("filters = %v", filters)
	}
	if err := iso.ValidateOwner(context.Background()); err != nil {
		t.Errorf("ValidateOwner() error = %v", err)
	}
}

func TestIsolationModeFromString(t *testing.T) {
	for _, name := range []string{"payload", "", "none"} {
		if _, err := IsolationModeFromString(name); err != nil {
			t.Errorf("IsolationModeFromString(%q) error = %v", name, err)
		}
	}
	if _, err := IsolationModeFromString("filesystem"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
