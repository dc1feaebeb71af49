// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"testing"
	"time"
)

func TestIntPtr(t *testing.T) {
	tests := []int{0, 1, -1, 42}

	for _, test := range tests {
		ptr := IntPtr(test)
		if ptr == nil {
			t.Fatal("expected non-nil pointer")
		}
		if *ptr != test {
			t.Errorf("expected %d, got %d", test, *ptr)
		}
	}
}

func TestTimePtr(t *testing.T) {
	tests := []time.Time{
		{},
		time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	for _, test := range tests {
		ptr := TimePtr(test)
		if ptr == nil {
			t.Fatal("expected non-nil pointer")
		}
		if !ptr.Equal(test) {
			t.Errorf("expected %v, got %v", test, *ptr)
		}
	}
}

func TestPointerIndependence(t *testing.T) {
	original := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	ptr := TimePtr(original)

	*ptr = ptr.Add(time.Hour)

	if !original.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Error("modifying the pointer must not change the original value")
	}

	a, b := IntPtr(1), IntPtr(1)
	if a == b {
		t.Error("expected distinct pointers")
	}
}
