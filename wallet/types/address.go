// Copyright 2025 PolyCrypt GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
)

// AddressLength is the length of an address in bytes.
const AddressLength = ed25519.PublicKeySize

// Address identifies an account on the ledger. It is the raw ed25519 public key of the account holder,
// or an arbitrary 32 byte identifier for program accounts.
type Address [AddressLength]byte

// ZeroAddress is the all-zero address. It identifies the system program.
var ZeroAddress = Address{}

// ParseAddress parses a strkey encoded account id (G...).
func ParseAddress(s string) (Address, error) {
	raw, err := strkey.Decode(strkey.VersionByteAccountID, s)
	if err != nil {
		return Address{}, fmt.Errorf("parsing address %q: %w", s, err)
	}
	return AddressFromBytes(raw)
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes copies a 32 byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, fmt.Errorf("invalid address length: %d", len(b))
	}
	copy(a[:], b)
	return a, nil
}

// AddressFromKeyPair returns the address of the given stellar key pair.
func AddressFromKeyPair(kp keypair.KP) (Address, error) {
	return ParseAddress(kp.Address())
}

// String returns the strkey representation of the address.
func (a Address) String() string {
	s, err := strkey.Encode(strkey.VersionByteAccountID, a[:])
	if err != nil {
		panic(err)
	}
	return s
}

// PublicKey returns the address interpreted as ed25519 public key.
func (a Address) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(a[:])
}

func (a Address) Equal(other Address) bool {
	return a == other
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) Compare(other Address) int {
	return bytes.Compare(a[:], other[:])
}

// Hash returns the address as xdr.Hash, which is how program ids appear in contract events.
func (a Address) Hash() xdr.Hash {
	return xdr.Hash(a)
}

// MarshalBinary encodes the address into binary form.
func (a Address) MarshalBinary() ([]byte, error) {
	b := make([]byte, AddressLength)
	copy(b, a[:])
	return b, nil
}

// UnmarshalBinary decodes the address from binary form.
func (a *Address) UnmarshalBinary(data []byte) error {
	parsed, err := AddressFromBytes(data)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
