// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package stat_test

import (
	"math"
	"testing"

	"github.com/cloud-bulldozer/orion-go/internal/stat"
)

func TestMean(t *testing.T) {
	mean, err := stat.Mean([]float64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if mean != 2.5 {
		t.Fatalf("Mean = %v, want 2.5", mean)
	}

	if _, err := stat.Mean(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestStdDev(t *testing.T) {
	input := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean, _ := stat.Mean(input)
	got := stat.StdDev(input, mean)
	if math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("StdDev = %v, want 2.0", got)
	}

	if got := stat.StdDev(nil, 0); got != 0 {
		t.Fatalf("StdDev(nil) = %v, want 0", got)
	}
}

func TestPercentChange(t *testing.T) {
	if got := stat.PercentChange(100, 110); got != 10 {
		t.Fatalf("PercentChange(100, 110) = %v, want 10", got)
	}
	if got := stat.PercentChange(100, 90); got != -10 {
		t.Fatalf("PercentChange(100, 90) = %v, want -10", got)
	}
}
