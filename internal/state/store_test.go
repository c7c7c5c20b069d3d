package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"rebalance_bot/internal/models"
)

func TestFirstRunDefaults(t *testing.T) {
	s := NewStore(t.TempDir())

	if list := s.LoadRemovalList(); len(list) != 0 {
		t.Fatalf("fresh removal list = %v, want empty", list)
	}

	ath := s.LoadPortfolioATH()
	if ath.Active || ath.Triggered || ath.AllTimeHigh != 0 || ath.Investment != 0 || !ath.Resume.IsZero() {
		t.Fatalf("fresh ATH state = %+v, want zero state", ath)
	}
}

func TestRemovalListRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	in := []models.CoinRemoval{
		{Coin: "XRP", Execute: expiry},
		{Coin: "LUNA", Execute: expiry.Add(24 * time.Hour)},
	}
	if err := s.SaveRemovalList(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out := s.LoadRemovalList()
	if len(out) != 2 || out[0].Coin != "XRP" || !out[0].Execute.Equal(expiry) {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

func TestPortfolioATHRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	in := models.PortfolioATH{
		Active:      true,
		AllTimeHigh: 123456.78,
		Investment:  50000,
		Resume:      time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Triggered:   true,
	}
	if err := s.SavePortfolioATH(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out := s.LoadPortfolioATH()
	if out.Active != in.Active || out.Triggered != in.Triggered ||
		out.AllTimeHigh != in.AllTimeHigh || out.Investment != in.Investment ||
		!out.Resume.Equal(in.Resume) {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

func TestCorruptStateFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{removalListFile, portfolioATHFile} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s := NewStore(dir)
	if list := s.LoadRemovalList(); len(list) != 0 {
		t.Fatalf("corrupt removal list = %v, want empty", list)
	}
	if ath := s.LoadPortfolioATH(); ath.Active || ath.AllTimeHigh != 0 {
		t.Fatalf("corrupt ATH = %+v, want zero state", ath)
	}
}

func TestSaveCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s := NewStore(dir)

	if err := s.SaveRemovalList(nil); err != nil {
		t.Fatalf("save into missing dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, removalListFile)); err != nil {
		t.Fatalf("state file not created: %v", err)
	}
}
