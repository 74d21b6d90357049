package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/BurntSushi/toml"
)

// parseTOMLConfig is an ff.ConfigFileParser. Top-level keys name flags and
// nested tables are joined with a dash, so
//
//	[store]
//	driver = "sqlite"
//
// sets -store-driver. Array values set the flag once per element.
func parseTOMLConfig(r io.Reader, set func(name, value string) error) error {
	var m map[string]interface{}
	if _, err := toml.NewDecoder(r).Decode(&m); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return setTOMLValues("", m, set)
}

func setTOMLValues(prefix string, m map[string]interface{}, set func(name, value string) error) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "-" + k
		}
		switch v := m[k].(type) {
		case map[string]interface{}:
			if err := setTOMLValues(name, v, set); err != nil {
				return err
			}
		case []interface{}:
			for _, e := range v {
				if err := set(name, fmt.Sprint(e)); err != nil {
					return err
				}
			}
		default:
			if err := set(name, fmt.Sprint(v)); err != nil {
				return err
			}
		}
	}
	return nil
}
