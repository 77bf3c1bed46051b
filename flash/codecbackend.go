/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Jan  5 11:53:20 2018 mstenber
 * Last modified: Mon Oct 19 12:17:33 2026 mstenber
 * Edit time:     14 min
 *
 */

package flash

import (
	"github.com/pkg/errors"

	"github.com/fingon/go-flashcache/codec"
)

// codecBackend encodes values on their way to the backend, and
// decodes them on their way back. The key is used as the additional
// data of the codec.
type codecBackend struct {
	ProxyBackend
	codec codec.Codec
}

// NewCodecBackend wraps backend so that everything stored passes
// through c.
func NewCodecBackend(backend Backend, c codec.Codec) Backend {
	return &codecBackend{ProxyBackend: ProxyBackend{Backend: backend}, codec: c}
}

func (self *codecBackend) GetChunk(key []byte) ([]byte, error) {
	data, err := self.Backend.GetChunk(key)
	if err != nil {
		return nil, err
	}
	b, err := self.codec.DecodeBytes(data, key)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding chunk %x", key)
	}
	return b, nil
}

func (self *codecBackend) StoreChunk(key, data []byte) error {
	b, err := self.codec.EncodeBytes(data, key)
	if err != nil {
		return errors.Wrapf(err, "encoding chunk %x", key)
	}
	return self.Backend.StoreChunk(key, b)
}
