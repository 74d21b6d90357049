package main

import (
	"fmt"

	"github.com/shazow/wifiprov/store"
	"github.com/shazow/wifiprov/store/bolt"
	"github.com/shazow/wifiprov/store/memory"
	"github.com/shazow/wifiprov/store/sqlite"
)

func nopClose() error { return nil }

// openStore opens the credential store backend named by driver.
func openStore(driver, path string) (store.Store, func() error, error) {
	switch driver {
	case "bolt", "":
		s, err := bolt.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "sqlite":
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "memory":
		return memory.NewAtomic(), nopClose, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", driver)
}
