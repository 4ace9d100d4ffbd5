package domain

import (
	"errors"
	"math"
	"testing"
)

func TestCheckedMul(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr error
	}{
		{"zero times anything", 0, math.MaxUint64, 0, nil},
		{"small product", 10, 2, 20, nil},
		{"max by one", math.MaxUint64, 1, math.MaxUint64, nil},
		{"overflow", math.MaxUint64, 2, 0, ErrArithmeticOverflow},
		{"overflow large factors", 1 << 33, 1 << 33, 0, ErrArithmeticOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckedMul(tt.a, tt.b)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CheckedMul(%d, %d) error = %v, want %v", tt.a, tt.b, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("CheckedMul(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCheckedAdd(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr error
	}{
		{"zeros", 0, 0, 0, nil},
		{"small sum", 10, 15, 25, nil},
		{"max plus zero", math.MaxUint64, 0, math.MaxUint64, nil},
		{"overflow", math.MaxUint64, 1, 0, ErrArithmeticOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckedAdd(tt.a, tt.b)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CheckedAdd(%d, %d) error = %v, want %v", tt.a, tt.b, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("CheckedAdd(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
