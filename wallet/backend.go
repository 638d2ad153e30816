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

package wallet

import (
	"crypto/ed25519"
	"errors"
	"io"

	"github.com/stellar/go/keypair"

	"perun.network/perun-paystream-backend/wallet/types"
)

// SignatureLength is the length of a signature in bytes.
const SignatureLength = ed25519.SignatureSize

type backend struct{}

// Backend verifies signatures made by wallet accounts.
var Backend = backend{}

// DecodeSig decodes a signature of length SignatureLength from the reader.
func (b backend) DecodeSig(reader io.Reader) ([]byte, error) {
	sig := make([]byte, SignatureLength)
	if _, err := io.ReadFull(reader, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// VerifySignature reports whether sig is a valid signature of msg by the holder of addr.
func (b backend) VerifySignature(msg []byte, sig []byte, addr types.Address) (bool, error) {
	if len(sig) != SignatureLength {
		return false, errors.New("invalid signature size")
	}
	kp, err := keypair.ParseAddress(addr.String())
	if err != nil {
		return false, err
	}
	if err := kp.Verify(msg, sig); err != nil {
		if errors.Is(err, keypair.ErrInvalidSignature) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
