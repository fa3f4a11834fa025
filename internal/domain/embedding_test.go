package domain

import (
	"errors"
	"testing"
)

func TestModelInfo_Validate(t *testing.T) {
	tests := []struct {
		name    string
		info    ModelInfo
		wantErr bool
	}{
		{"valid", ModelInfo{Name: "all-MiniLM-L6-v2", Dimension: 384, MaxSeqLength: 256}, false},
		{"missing name", ModelInfo{Dimension: 384}, true},
		{"zero dimension", ModelInfo{Name: "m"}, true},
		{"negative dimension", ModelInfo{Name: "m", Dimension: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.info.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfiguration) {
					t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestModelInfo_CompatibleWith(t *testing.T) {
	a := ModelInfo{Name: "m", Dimension: 384, MaxSeqLength: 256}

	if !a.CompatibleWith(ModelInfo{Name: "m", Dimension: 384, MaxSeqLength: 512}) {
		t.Error("max sequence length must not affect compatibility")
	}
	if a.CompatibleWith(ModelInfo{Name: "m", Dimension: 768}) {
		t.Error("different dimension must be incompatible")
	}
	if a.CompatibleWith(ModelInfo{Name: "other", Dimension: 384}) {
		t.Error("different model must be incompatible")
	}
}

func TestStageError_Unwrap(t *testing.T) {
	err := NewStageError("retrieving", ErrStorage)

	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage in chain, got %v", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != "retrieving" {
		t.Fatalf("expected StageError with stage retrieving, got %v", err)
	}
}
