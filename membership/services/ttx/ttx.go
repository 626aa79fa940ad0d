/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ttx implements the multi-party steps shared by all membership flows:
// signature collection, countersigning and finality.
package ttx

import (
	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
)

var logger = logging.MustGetLogger("ttx")

// Ack acknowledges the reception of a transaction.
type Ack struct {
	TxID string `json:"txId"`
}

// SignatureResponse carries the countersignature of a transaction.
type SignatureResponse struct {
	Signature membership.Signature `json:"signature"`
}
