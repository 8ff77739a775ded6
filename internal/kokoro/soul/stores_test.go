package soul

import (
	"math"
	"testing"
)

func TestScore_FixedCoefficients(t *testing.T) {
	tests := []struct {
		name string
		rec  MoralWeightRecord
		want float64
	}{
		{"zero record", MoralWeightRecord{}, 0},
		{"felt only", MoralWeightRecord{TimesFelt: 3}, 3 * WeightFelt},
		{"felt twice promoted once", MoralWeightRecord{TimesFelt: 2, TimesPromoted: 1}, 2*1.00 + 1*1.33},
		{"all counters", MoralWeightRecord{TimesFelt: 1, TimesPromoted: 1, TimesRejected: 1, TimesAscended: 1},
			1*WeightFelt + 1*WeightPromoted + 1*WeightRejected + 1*WeightAscended},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Score(); got != tt.want {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore_ApproximatesExpectedValue(t *testing.T) {
	rec := MoralWeightRecord{TimesFelt: 2, TimesPromoted: 1}
	if got := rec.Score(); math.Abs(got-3.33) > 1e-9 {
		t.Errorf("Score() = %v, want 3.33", got)
	}
}

// Score must be a pure function of the counters: identical counters score
// bit-identically no matter how the record was built up.
func TestScore_OrderIndependent(t *testing.T) {
	a := MoralWeightRecord{}
	a = a.bump(CounterFelt).bump(CounterAscended).bump(CounterFelt).bump(CounterRejected)

	b := MoralWeightRecord{}
	b = b.bump(CounterRejected).bump(CounterFelt).bump(CounterFelt).bump(CounterAscended)

	if a.Score() != b.Score() {
		t.Errorf("scores differ for identical counters: %v vs %v", a.Score(), b.Score())
	}
}

func TestBump(t *testing.T) {
	rec := MoralWeightRecord{Key: "k"}
	rec = rec.bump(CounterFelt).bump(CounterPromoted).bump(CounterRejected).bump(CounterAscended).bump(CounterFelt)

	if rec.TimesFelt != 2 || rec.TimesPromoted != 1 || rec.TimesRejected != 1 || rec.TimesAscended != 1 {
		t.Errorf("counters = %+v, want felt=2 promoted=1 rejected=1 ascended=1", rec)
	}
	if rec.Key != "k" {
		t.Errorf("bump lost the key: %q", rec.Key)
	}
}
