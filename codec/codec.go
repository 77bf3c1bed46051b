/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sun Dec 24 16:42:12 2017 mstenber
 * Last modified: Mon Oct 19 11:40:29 2026 mstenber
 * Edit time:     104 min
 *
 */

// codec library is responsible for transforming chunk payloads on
// their way to (and from) the flash backend. In practise this means
// compressing and/or encrypting them.
//
// additionalData is the chunk key; encrypted payloads are bound to it
// so that chunks cannot be swapped around on the medium.
//
// CodecChain makes it possible to combine multiple Codecs that do the
// particular sub-EncodeBytes/DecodeBytes steps.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/golang/snappy"
	"github.com/minio/sha256-simd"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

// Codec is a single transformation of byte slices.
type Codec interface {
	DecodeBytes(data, additionalData []byte) (ret []byte, err error)
	EncodeBytes(data, additionalData []byte) (ret []byte, err error)
}

const keySize = 32

// EncryptingCodec is AES GCM based encrypting/decrypting (and
// authenticating) Codec, with key derived from password using pbkdf2.
type EncryptingCodec struct {
	gcm cipher.AEAD
}

// NewEncryptingCodec derives the key; iter is the number of pbkdf2
// iterations.
func NewEncryptingCodec(password, salt []byte, iter int) (*EncryptingCodec, error) {
	mk := pbkdf2.Key(password, salt, iter, keySize, sha256.New)
	block, err := aes.NewCipher(mk)
	if err != nil {
		return nil, errors.Wrap(err, "aes.NewCipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "cipher.NewGCM")
	}
	return &EncryptingCodec{gcm: gcm}, nil
}

func (self *EncryptingCodec) DecodeBytes(data, additionalData []byte) (ret []byte, err error) {
	var ed EncryptedData
	_, err = ed.UnmarshalMsg(data)
	if err != nil {
		return
	}
	ret, err = self.gcm.Open(nil, ed.Nonce, ed.EncryptedData, additionalData)
	if err != nil {
		err = errors.Wrap(err, "gcm.Open")
	}
	return
}

func (self *EncryptingCodec) EncodeBytes(data, additionalData []byte) (ret []byte, err error) {
	nonce := make([]byte, self.gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return
	}
	ciphertext := self.gcm.Seal(nil, nonce, data, additionalData)
	ed := EncryptedData{Nonce: nonce, EncryptedData: ciphertext}
	ret, err = ed.MarshalMsg(nil)
	return
}

// CompressingCodec compresses with snappy. If the result does not
// improve, the data is stored as-is (at cost of envelope).
type CompressingCodec struct {
}

func (self *CompressingCodec) DecodeBytes(data, additionalData []byte) (ret []byte, err error) {
	var cd CompressedData
	_, err = cd.UnmarshalMsg(data)
	if err != nil {
		return
	}
	switch cd.CompressionType {
	case CompressionType_PLAIN:
		ret = cd.RawData
	case CompressionType_SNAPPY:
		ret, err = snappy.Decode(nil, cd.RawData)
		if err != nil {
			err = errors.Wrap(err, "snappy.Decode")
		}
	default:
		err = errors.Errorf("unknown compression type %d", cd.CompressionType)
	}
	return
}

func (self *CompressingCodec) EncodeBytes(data, additionalData []byte) (ret []byte, err error) {
	cd := CompressedData{CompressionType: CompressionType_SNAPPY,
		RawData: snappy.Encode(nil, data)}
	if len(cd.RawData) >= len(data) {
		cd.CompressionType = CompressionType_PLAIN
		cd.RawData = data
	}
	ret, err = cd.MarshalMsg(nil)
	return
}

type CodecChain struct {
	codecs, reverseCodecs []Codec
}

// Init method initializes the codec chain.
//
// codecs are given in decryption order, so e.g.
// encrypting one should be given before compressing one.
func (self CodecChain) Init(codecs ...Codec) *CodecChain {
	self.codecs = codecs
	rc := make([]Codec, len(codecs))
	for i, c := range codecs {
		rc[len(codecs)-i-1] = c
	}
	self.reverseCodecs = rc
	return &self
}

// Len returns the number of codecs in the chain.
func (self *CodecChain) Len() int {
	return len(self.codecs)
}

func (self *CodecChain) DecodeBytes(data, additionalData []byte) (ret []byte, err error) {
	ret = data
	for _, c := range self.codecs {
		ret, err = c.DecodeBytes(ret, additionalData)
		if err != nil {
			return
		}
	}
	return
}

func (self *CodecChain) EncodeBytes(data, additionalData []byte) (ret []byte, err error) {
	ret = data
	for _, c := range self.reverseCodecs {
		ret, err = c.EncodeBytes(ret, additionalData)
		if err != nil {
			return
		}
	}
	return
}
