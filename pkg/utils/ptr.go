// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import "time"

// IntPtr converts an int to a pointer to an int.
func IntPtr(i int) *int {
	return &i
}

// TimePtr converts a time.Time to a pointer to a time.Time.
func TimePtr(t time.Time) *time.Time {
	return &t
}
