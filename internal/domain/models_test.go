package domain

import "testing"

func TestBracketFor(t *testing.T) {
	cases := []struct {
		trophies int
		wantMin  int
	}{
		{0, 0},
		{4999, 0},
		{5000, 5000},
		{19999, 10000},
		{30000, 30000},
		{99999, 50000},
		{250000, 50000}, // above all ranges falls into the highest bracket
	}
	for _, tc := range cases {
		if got := BracketFor(tc.trophies); got.Min != tc.wantMin {
			t.Errorf("BracketFor(%d).Min = %d, want %d", tc.trophies, got.Min, tc.wantMin)
		}
	}
}

func TestBracketContainsIsHalfOpen(t *testing.T) {
	b := TrophyBracket{Min: 5000, Max: 10000}
	if b.Contains(10000) {
		t.Error("upper bound must be exclusive")
	}
	if !b.Contains(5000) {
		t.Error("lower bound must be inclusive")
	}
}

func TestSynergyValidateCanonicalOrder(t *testing.T) {
	good := BrawlerSynergy{BrawlerA: "Colt", BrawlerB: "Shelly", Quality: QualityLow}
	if err := good.Validate(); err != nil {
		t.Errorf("valid synergy rejected: %v", err)
	}

	for _, bad := range []BrawlerSynergy{
		{BrawlerA: "Shelly", BrawlerB: "Colt", Quality: QualityLow},
		{BrawlerA: "Colt", BrawlerB: "Colt", Quality: QualityLow},
		{BrawlerA: "", BrawlerB: "Shelly", Quality: QualityLow},
		{BrawlerA: "Colt", BrawlerB: "Shelly", Quality: "excellent"},
	} {
		if err := bad.Validate(); err == nil {
			t.Errorf("invalid synergy %+v accepted", bad)
		}
	}
}
