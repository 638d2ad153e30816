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

package ledger

import (
	"bytes"

	"github.com/pkg/errors"
	xdr3 "github.com/stellar/go-xdr/xdr3"

	"perun.network/perun-paystream-backend/wallet/types"
)

// MaxAccountDataLength bounds the data region of a single account.
const MaxAccountDataLength = 10 << 20

// Account is the ledger state stored under an address. Accounts that were never written read as
// the zero Account, which is owned by the system program.
type Account struct {
	Lamports uint64
	Owner    types.Address
	Data     []byte
}

// KeyedAccount is an account together with its address.
type KeyedAccount struct {
	Address types.Address
	Account Account
}

func (a Account) IsZero() bool {
	return a.Lamports == 0 && a.Owner.IsZero() && len(a.Data) == 0
}

// Clone returns a deep copy of a.
func (a Account) Clone() Account {
	c := a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return c
}

func (a Account) Equal(other Account) bool {
	return a.Lamports == other.Lamports && a.Owner == other.Owner && bytes.Equal(a.Data, other.Data)
}

func (a Account) EncodeTo(e *xdr3.Encoder) error {
	if _, err := e.EncodeUhyper(a.Lamports); err != nil {
		return err
	}
	if _, err := e.EncodeFixedOpaque(a.Owner[:]); err != nil {
		return err
	}
	_, err := e.EncodeOpaque(a.Data)
	return err
}

func (a *Account) decodeFrom(d *xdr3.Decoder) error {
	lamports, _, err := d.DecodeUhyper()
	if err != nil {
		return errors.WithMessage(err, "lamports")
	}
	owner, _, err := d.DecodeFixedOpaque(types.AddressLength)
	if err != nil {
		return errors.WithMessage(err, "owner")
	}
	data, _, err := d.DecodeOpaque(MaxAccountDataLength)
	if err != nil {
		return errors.WithMessage(err, "data")
	}
	a.Lamports = lamports
	copy(a.Owner[:], owner)
	a.Data = data
	if len(a.Data) == 0 {
		a.Data = nil
	}
	return nil
}

// MarshalBinary encodes the account in XDR.
func (a Account) MarshalBinary() ([]byte, error) {
	buf := bytes.Buffer{}
	e := xdr3.NewEncoder(&buf)
	err := a.EncodeTo(e)
	return buf.Bytes(), err
}

// UnmarshalBinary decodes an XDR encoded account.
func (a *Account) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	if err := a.decodeFrom(xdr3.NewDecoder(r)); err != nil {
		return err
	}
	if r.Len() != 0 {
		return errors.Errorf("%d trailing bytes after account", r.Len())
	}
	return nil
}
