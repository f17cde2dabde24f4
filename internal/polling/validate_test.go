package polling

import (
	"testing"

	"github.com/vietddude/pollster/internal/core/domain"
)

func TestValidateDistribution(t *testing.T) {
	tests := []struct {
		name    string
		parsed  []rankingEntry
		count   int
		wantErr bool
	}{
		{
			"valid split",
			[]rankingEntry{{Product: "A", Percentage: 40}, {Product: "B", Percentage: 35}, {Product: "C", Percentage: 25}},
			3, false,
		},
		{
			"zero share",
			[]rankingEntry{{Product: "A", Percentage: 100}, {Product: "B", Percentage: 0}},
			2, true,
		},
		{
			"negative share",
			[]rankingEntry{{Product: "A", Percentage: 105}, {Product: "B", Percentage: -5}},
			2, true,
		},
		{
			"sum off by one",
			[]rankingEntry{{Product: "A", Percentage: 50}, {Product: "B", Percentage: 49}},
			2, true,
		},
		{
			"sum within tolerance",
			[]rankingEntry{{Product: "A", Percentage: 33.33}, {Product: "B", Percentage: 33.33}, {Product: "C", Percentage: 33.33}},
			3, false,
		},
		{
			"entry count mismatch",
			[]rankingEntry{{Product: "A", Percentage: 60}, {Product: "B", Percentage: 40}},
			3, true,
		},
		{
			"empty",
			nil,
			3, true,
		},
	}

	for _, tt := range tests {
		err := validateDistribution(tt.parsed, tt.count)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: validateDistribution() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestValidateRequestAppliesSampleDefault(t *testing.T) {
	req := domain.PollRequest{
		Kind:     domain.PollKindTitle,
		Question: "q",
		Products: testProducts(),
	}
	if err := validateRequest(&req, 5); err != nil {
		t.Fatalf("validateRequest failed: %v", err)
	}
	if req.SampleSize != 5 {
		t.Errorf("SampleSize = %d, want 5", req.SampleSize)
	}

	req.SampleSize = 8
	if err := validateRequest(&req, 5); err != nil {
		t.Fatalf("validateRequest failed: %v", err)
	}
	if req.SampleSize != 8 {
		t.Errorf("SampleSize = %d, want explicit 8 kept", req.SampleSize)
	}
}
