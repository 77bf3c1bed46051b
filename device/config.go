/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2026 Markus Stenberg
 *
 * Created:       Mon Oct 19 17:02:11 2026 mstenber
 * Last modified: Mon Oct 19 17:31:45 2026 mstenber
 * Edit time:     25 min
 *
 */

package device

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/tailscale/hujson"

	"github.com/fingon/go-flashcache/flash"
	"github.com/fingon/go-flashcache/flash/factory"
)

// Configuration of a device. On disk it is JSON, with comments and
// trailing commas allowed.
type Configuration struct {
	// Caches is the number of short operation cache slots; zero
	// disables the cache, and cache.MaxCaches is the most used.
	Caches int `json:"caches"`

	ChunkSize int `json:"chunkSize"`

	// Backend is one of factory.List().
	Backend   string `json:"backend"`
	Directory string `json:"directory"`

	// Password enables encryption of the chunks.
	Password   string `json:"password,omitempty"`
	Salt       string `json:"salt,omitempty"`
	Iterations int    `json:"iterations,omitempty"`

	// NoSync makes the backend sync only on Flush/Sync/Close.
	NoSync bool `json:"noSync,omitempty"`
}

const (
	DefaultCaches    = 10
	DefaultChunkSize = 2048
	DefaultBackend   = "bolt"

	MaxChunkSize = 1 << 24
)

func DefaultConfiguration() Configuration {
	return Configuration{
		Caches:    DefaultCaches,
		ChunkSize: DefaultChunkSize,
		Backend:   DefaultBackend,
	}
}

// ParseConfiguration reads configuration from data; fields not
// mentioned keep their default values.
func ParseConfiguration(data []byte) (Configuration, error) {
	config := DefaultConfiguration()
	b, err := hujson.Standardize(data)
	if err != nil {
		return config, errors.Wrap(err, "hujson.Standardize")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err = dec.Decode(&config); err != nil {
		return config, errors.Wrap(err, "json decode")
	}
	return config, config.Validate()
}

func LoadConfiguration(path string) (Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfiguration(), errors.Wrap(err, "reading configuration")
	}
	return ParseConfiguration(data)
}

func (self Configuration) Validate() error {
	if self.ChunkSize <= 0 || self.ChunkSize > MaxChunkSize {
		return errors.Errorf("invalid chunkSize %d", self.ChunkSize)
	}
	if self.Caches < 0 {
		return errors.Errorf("invalid caches %d", self.Caches)
	}
	if self.Backend == "" {
		return errors.New("no backend")
	}
	return nil
}

func (self Configuration) storeConfiguration() factory.StoreConfiguration {
	return factory.StoreConfiguration{
		BackendConfiguration: flash.BackendConfiguration{
			Directory: self.Directory,
			NoSync:    self.NoSync,
		},
		BackendName: self.Backend,
		Password:    self.Password,
		Salt:        self.Salt,
		Iterations:  self.Iterations,
	}
}
