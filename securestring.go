// MIT License
//
// Copyright (c) 2016-2017 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package tio

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/sagernet/sing/common"
	E "github.com/sagernet/sing/common/exceptions"
)

// SecureString holds a credential encrypted at rest in memory, under a
// fresh per-instance 256-bit AES key and random IV in CFB mode. It raises
// the bar against casual heap scraping; it is not a security boundary.
// The plaintext passed in remains the caller's to zero out.
type SecureString struct {
	key        []byte
	iv         []byte
	ciphertext []byte
}

func NewSecureString(plaintext []byte) (*SecureString, error) {
	key := make([]byte, 32)
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(key); err != nil {
		return nil, E.Cause(err, "generate key")
	}
	if _, err := rand.Read(iv); err != nil {
		return nil, E.Cause(err, "generate iv")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(ciphertext, plaintext)
	return &SecureString{key: key, iv: iv, ciphertext: ciphertext}, nil
}

// Decrypt returns a fresh plaintext copy. The caller owns zeroing it.
func (s *SecureString) Decrypt() []byte {
	block, err := aes.NewCipher(s.key)
	common.Must(err)
	plaintext := make([]byte, len(s.ciphertext))
	cipher.NewCFBDecrypter(block, s.iv).XORKeyStream(plaintext, s.ciphertext)
	return plaintext
}

func (s *SecureString) Len() int {
	return len(s.ciphertext)
}
