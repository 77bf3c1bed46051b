/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sun Dec 24 16:42:58 2017 mstenber
 * Last modified: Mon Oct 19 11:31:12 2026 mstenber
 * Edit time:     31 min
 *
 */

package codec

import (
	"github.com/glycerine/greenpack/msgp"
	"github.com/pkg/errors"
)

// This is responsible for hiding (and compressing) chunk payloads in
// plain sight, so to speak. Both envelopes are msgp arrays.

type EncryptedData struct {
	// Nonce used for AES GCM
	Nonce []byte `zid:"0"`

	// EncryptedData is AES GCM encrypted payload
	EncryptedData []byte `zid:"1"`
}

type CompressionType byte

const (
	CompressionType_UNSET CompressionType = iota

	// The data has not been compressed.
	CompressionType_PLAIN

	// The data is compressed with Snappy.
	CompressionType_SNAPPY
)

type CompressedData struct {
	// CompressionType describes how the data has been compressed.
	CompressionType CompressionType `zid:"0"`

	// RawData is the raw data of the client (whatever it is)
	RawData []byte `zid:"1"`
}

func readArrayHeader(nbs *msgp.NilBitsStack, b []byte, want uint32) ([]byte, error) {
	sz, b, err := nbs.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if sz != want {
		return b, errors.Errorf("envelope has %d fields, expected %d", sz, want)
	}
	return b, nil
}

func (self *EncryptedData) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendBytes(b, self.Nonce)
	b = msgp.AppendBytes(b, self.EncryptedData)
	return b, nil
}

func (self *EncryptedData) UnmarshalMsg(b []byte) (o []byte, err error) {
	var nbs msgp.NilBitsStack
	o, err = readArrayHeader(&nbs, b, 2)
	if err != nil {
		return
	}
	self.Nonce, o, err = nbs.ReadBytesBytes(o, nil)
	if err != nil {
		return
	}
	self.EncryptedData, o, err = nbs.ReadBytesBytes(o, nil)
	return
}

func (self *CompressedData) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendByte(b, byte(self.CompressionType))
	b = msgp.AppendBytes(b, self.RawData)
	return b, nil
}

func (self *CompressedData) UnmarshalMsg(b []byte) (o []byte, err error) {
	var nbs msgp.NilBitsStack
	o, err = readArrayHeader(&nbs, b, 2)
	if err != nil {
		return
	}
	var ct byte
	ct, o, err = nbs.ReadByteBytes(o)
	if err != nil {
		return
	}
	self.CompressionType = CompressionType(ct)
	self.RawData, o, err = nbs.ReadBytesBytes(o, nil)
	return
}
