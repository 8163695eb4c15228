package command

import (
	"errors"
	"testing"
)

func noopHandler(params map[string]any) (any, error) {
	return nil, nil
}

func TestRegistryClassifyKnownCommand(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("set_value", LossyEligible, noopHandler); err != nil {
		t.Fatalf("register: %v", err)
	}

	desc, err := reg.Classify("set_value")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if desc.Name != "set_value" {
		t.Fatalf("unexpected name: %q", desc.Name)
	}
	if desc.Tier != LossyEligible {
		t.Fatalf("unexpected tier: %v", desc.Tier)
	}
	if desc.Handler == nil {
		t.Fatalf("expected handler")
	}
}

func TestRegistryClassifyUnknownCommand(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Classify("nope"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("get_info", NeverLossy, noopHandler); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("get_info", LossyEligible, noopHandler); !errors.Is(err, ErrDuplicateCommand) {
		t.Fatalf("expected ErrDuplicateCommand, got %v", err)
	}
}

func TestRegistryRejectsInvalidName(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"", "   ", "\t\n"} {
		if err := reg.Register(name, NeverLossy, noopHandler); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("name %q: expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestRegistryRejectsNilHandler(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("broken", NeverLossy, nil); !errors.Is(err, ErrInvalidHandler) {
		t.Fatalf("expected ErrInvalidHandler, got %v", err)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := reg.Register(name, NeverLossy, noopHandler); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	names := reg.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("unexpected names: %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected order: %v", names)
		}
	}
}

func TestTierAndTransportStrings(t *testing.T) {
	if NeverLossy.String() != "never_lossy" || LossyEligible.String() != "lossy_eligible" {
		t.Fatalf("unexpected tier strings")
	}
	if TransportReliable.String() != "reliable" || TransportLossy.String() != "lossy" {
		t.Fatalf("unexpected transport strings")
	}
}
