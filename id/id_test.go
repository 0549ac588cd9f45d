package id_test

import (
	"strings"
	"testing"

	"github.com/adwire/conveyor/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"ItemID", id.NewItemID, "witem_"},
		{"RunID", id.NewRunID, "run_"},
		{"FileID", id.NewFileID, "file_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"ItemID", id.NewItemID, id.ParseItemID},
		{"RunID", id.NewRunID, id.ParseRunID},
		{"FileID", id.NewFileID, id.ParseFileID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseItemID rejects run_", id.NewRunID().String(), id.ParseItemID},
		{"ParseRunID rejects file_", id.NewFileID().String(), id.ParseRunID},
		{"ParseFileID rejects witem_", id.NewItemID().String(), id.ParseFileID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parseFn(tt.input)
			if err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestBefore_OrdersByCreation(t *testing.T) {
	first := id.NewItemID()
	second := id.NewItemID()
	if !first.Before(second) && first.String() != second.String() {
		// UUIDv7 IDs generated in sequence sort in creation order.
		t.Errorf("expected %q to sort before %q", first, second)
	}
	if second.Before(first) {
		t.Errorf("expected %q not to sort before %q", second, first)
	}
}

func TestNilID(t *testing.T) {
	var nilID id.ID
	if !nilID.IsNil() {
		t.Error("zero value should be nil")
	}
	if nilID.String() != "" {
		t.Errorf("nil ID String() = %q, want empty", nilID.String())
	}

	data, err := nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("nil ID MarshalText = %q, want empty", data)
	}
}

func TestScan(t *testing.T) {
	original := id.NewItemID()

	var fromString id.ID
	if err := fromString.Scan(original.String()); err != nil {
		t.Fatalf("Scan(string) failed: %v", err)
	}
	if fromString.String() != original.String() {
		t.Errorf("Scan(string) mismatch: %q != %q", fromString, original)
	}

	var fromBytes id.ID
	if err := fromBytes.Scan([]byte(original.String())); err != nil {
		t.Fatalf("Scan([]byte) failed: %v", err)
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !fromNil.IsNil() {
		t.Error("Scan(nil) should produce the nil ID")
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}
