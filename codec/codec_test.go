/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sun Dec 24 17:15:30 2017 mstenber
 * Last modified: Mon Oct 19 11:52:08 2026 mstenber
 * Edit time:     71 min
 *
 */

package codec

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/stvp/assert"
)

const compressible = "123456789123456789123456789123456789123456789123456789123456789123456789123456789123456789123456789"

func ProdCodecOnce(text string, c Codec, t *testing.T) {
	p := []byte(text)
	enc, err := c.EncodeBytes(p, []byte("key"))
	assert.Nil(t, err)
	dec, err := c.DecodeBytes(enc, []byte("key"))
	assert.Nil(t, err)
	assert.Equal(t, string(dec), text)
}

func ProdCodec(c Codec, t *testing.T) {
	ProdCodecOnce("", c, t)
	ProdCodecOnce("foo", c, t)
	ProdCodecOnce(compressible, c, t)
}

func newEncryptingCodec(t testing.TB) *EncryptingCodec {
	c, err := NewEncryptingCodec([]byte("foo"), []byte("salt"), 64)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestEncryptingCodec(t *testing.T) {
	t.Parallel()
	p := []byte("data")
	ad := []byte("ad")

	c := newEncryptingCodec(t)
	ProdCodec(c, t)

	enc, err := c.EncodeBytes(p, nil)
	assert.Nil(t, err)

	// Chunk moved under another key must not decode
	_, err2 := c.DecodeBytes(enc, ad)
	assert.True(t, err2 != nil)

	// Same payload does not encrypt the same way
	enc2, err := c.EncodeBytes(p, nil)
	assert.Nil(t, err)
	assert.NotEqual(t, enc, enc2)

	dec, err := c.DecodeBytes(enc2, nil)
	assert.Nil(t, err)
	assert.Equal(t, dec, p)

	// Different password cannot read it
	c2, err := NewEncryptingCodec([]byte("bar"), []byte("salt"), 64)
	assert.Nil(t, err)
	_, err = c2.DecodeBytes(enc2, nil)
	assert.True(t, err != nil)
}

func TestCompressingCodec(t *testing.T) {
	t.Parallel()
	c := &CompressingCodec{}
	ProdCodec(c, t)

	p := []byte(compressible)
	enc, err := c.EncodeBytes(p, nil)
	assert.Nil(t, err)
	assert.True(t, len(enc) < len(compressible)/2)

	// Incompressible data is stored as-is
	r := make([]byte, 256)
	rand.Read(r)
	enc, err = c.EncodeBytes(r, nil)
	assert.Nil(t, err)
	var cd CompressedData
	_, err = cd.UnmarshalMsg(enc)
	assert.Nil(t, err)
	assert.Equal(t, cd.CompressionType, CompressionType_PLAIN)
	assert.True(t, bytes.Equal(cd.RawData, r))

	_, err = c.DecodeBytes([]byte("garbage"), nil)
	assert.True(t, err != nil)
}

func TestNopCodecChain(t *testing.T) {
	t.Parallel()
	c := &CodecChain{}
	ProdCodec(c, t)
	assert.Equal(t, c.Len(), 0)
	enc, err := c.EncodeBytes([]byte("x"), nil)
	assert.Nil(t, err)
	assert.Equal(t, enc, []byte("x"))
}

func TestCodecChain(t *testing.T) {
	t.Parallel()
	c1 := newEncryptingCodec(t)
	c2 := &CompressingCodec{}
	c := CodecChain{}.Init(c1, c2)
	ProdCodec(c, t)
	assert.Equal(t, c.Len(), 2)

	p := []byte(compressible)
	enc, err := c.EncodeBytes(p, nil)
	assert.Nil(t, err)
	assert.True(t, len(enc) < len(compressible))
}

func BenchmarkCodec(b *testing.B) {
	run := func(b *testing.B, c Codec, p []byte, decode bool) {
		enc, err := c.EncodeBytes(p, nil)
		if err != nil {
			b.Fatal(err)
		}
		b.SetBytes(int64(len(p)))
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if decode {
				_, err = c.DecodeBytes(enc, nil)
			} else {
				_, err = c.EncodeBytes(p, nil)
			}
			if err != nil {
				b.Fatal(err)
			}
		}
	}
	random := make([]byte, 2048)
	rand.Read(random)
	zeros := make([]byte, 2048)
	cc := CodecChain{}.Init(newEncryptingCodec(b), &CompressingCodec{})
	for _, c := range []struct {
		name  string
		codec Codec
	}{{"AES", newEncryptingCodec(b)},
		{"Snappy", &CompressingCodec{}},
		{"AES+Snappy", cc}} {
		for _, data := range []struct {
			name string
			p    []byte
		}{{"Random", random}, {"Zeros", zeros}} {
			for _, decode := range []bool{false, true} {
				op := "Encode"
				if decode {
					op = "Decode"
				}
				b.Run(fmt.Sprintf("%s-%s-%s", op, c.name, data.name), func(b *testing.B) {
					run(b, c.codec, data.p, decode)
				})
			}
		}
	}
}
