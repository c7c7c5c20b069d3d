package state

import (
	"os"
	"path/filepath"

	"rebalance_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Well-known state files under the data dir. These are the only two
// pieces of state that survive a process restart; everything else is
// re-read from the exchange.
const (
	removalListFile  = "CoinRemovalList.json"
	portfolioATHFile = "PortfolioATH.json"
)

// Store persists the removal ledger and the trailing-stop state as JSON
// files. A missing or unreadable file is treated as first run and yields
// the zero state, so a corrupted disk never blocks a cycle.
type Store struct {
	dataDir string
}

func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

func (s *Store) load(name string, out interface{}) bool {
	raw, err := os.ReadFile(filepath.Join(s.dataDir, name))
	if err != nil || len(raw) == 0 {
		return false
	}
	return sonic.Unmarshal(raw, out) == nil
}

// save writes through a temp file and renames it into place so a crash
// mid-write leaves the previous state intact.
func (s *Store) save(name string, v interface{}) error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return errors.Wrap(err, "create data dir")
	}

	raw, err := sonic.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", name)
	}

	path := filepath.Join(s.dataDir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}

	return errors.Wrapf(os.Rename(tmp, path), "rename %s", name)
}

// LoadRemovalList returns the persisted grace-period ledger, empty on
// first run or unreadable state.
func (s *Store) LoadRemovalList() []models.CoinRemoval {
	var list []models.CoinRemoval
	if !s.load(removalListFile, &list) {
		return []models.CoinRemoval{}
	}
	return list
}

func (s *Store) SaveRemovalList(list []models.CoinRemoval) error {
	return s.save(removalListFile, list)
}

// LoadPortfolioATH returns the persisted trailing-stop state, zeroed on
// first run or unreadable state.
func (s *Store) LoadPortfolioATH() models.PortfolioATH {
	var ath models.PortfolioATH
	if !s.load(portfolioATHFile, &ath) {
		return models.PortfolioATH{}
	}
	return ath
}

func (s *Store) SavePortfolioATH(ath models.PortfolioATH) error {
	return s.save(portfolioATHFile, ath)
}
