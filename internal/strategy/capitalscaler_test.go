package strategy

import "testing"

func TestCapitalScaler_StartsAtTier1(t *testing.T) {
	s := NewCapitalScaler()
	if s.CurrentTier() != Tier1 {
		t.Fatalf("got tier %s, want tier1", s.CurrentTier())
	}
	if s.CurrentMaxPosition() != Tier1.MaxPositionLamports() {
		t.Fatalf("got max position %d, want %d", s.CurrentMaxPosition(), Tier1.MaxPositionLamports())
	}
}

func TestCapitalScaler_PromotesAtSeventyPercentOverHundredTrades(t *testing.T) {
	s := NewCapitalScaler()
	for i := 0; i < 100; i++ {
		s.Record(i%10 < 7) // 70 wins, 30 losses
	}
	if s.CurrentTier() != Tier2 {
		t.Fatalf("got tier %s, want tier2 after 70%% win rate over 100 trades", s.CurrentTier())
	}
}

func TestCapitalScaler_DoesNotPromoteBelowTradeFloor(t *testing.T) {
	s := NewCapitalScaler()
	for i := 0; i < 50; i++ {
		s.Record(true)
	}
	if s.CurrentTier() != Tier1 {
		t.Fatalf("got tier %s, want tier1 before hitting the 100-trade floor", s.CurrentTier())
	}
}

func TestCapitalScaler_DemotesBelowFiftyPercentWinRate(t *testing.T) {
	s := NewCapitalScaler()
	for i := 0; i < 100; i++ {
		s.Record(i%10 < 7)
	}
	if s.CurrentTier() != Tier2 {
		t.Fatalf("setup failed: got tier %s, want tier2", s.CurrentTier())
	}

	for i := 0; i < 50; i++ {
		s.Record(false)
	}
	if s.CurrentTier() != Tier1 {
		t.Fatalf("got tier %s, want demotion to tier1 after a losing streak", s.CurrentTier())
	}
}

func TestCapitalScaler_NeverDemotesBelowTier1(t *testing.T) {
	s := NewCapitalScaler()
	for i := 0; i < 200; i++ {
		s.Record(false)
	}
	if s.CurrentTier() != Tier1 {
		t.Fatalf("got tier %s, want tier1 (floor)", s.CurrentTier())
	}
}

func TestCapitalTier_LamportValues(t *testing.T) {
	cases := []struct {
		tier        CapitalTier
		maxPosition uint64
		dailyTarget uint64
	}{
		{Tier1, 10_000_000, 5_000_000},
		{Tier2, 50_000_000, 25_000_000},
		{Tier3, 100_000_000, 50_000_000},
		{Tier4, 500_000_000, 250_000_000},
	}
	for _, c := range cases {
		if got := c.tier.MaxPositionLamports(); got != c.maxPosition {
			t.Errorf("%s: got max position %d, want %d", c.tier, got, c.maxPosition)
		}
		if got := c.tier.DailyProfitTargetLamports(); got != c.dailyTarget {
			t.Errorf("%s: got daily target %d, want %d", c.tier, got, c.dailyTarget)
		}
	}
}
