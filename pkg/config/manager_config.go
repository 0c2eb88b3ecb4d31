package config

import "errors"

// ManagerConfiguration contains lifecycle manager settings.
type ManagerConfiguration struct {
	// TombstoneCacheSize is the number of finalized objects whose
	// descriptions are kept to enrich use-after-free faults. Zero disables
	// the cache, faults are still detected without it.
	TombstoneCacheSize int `yaml:"TombstoneCacheSize"`
}

// Validate checks ManagerConfiguration for internal consistency.
func (m ManagerConfiguration) Validate() error {
	if m.TombstoneCacheSize < 0 {
		return errors.New("negative TombstoneCacheSize")
	}
	return nil
}
