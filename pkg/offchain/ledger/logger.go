/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import "github.com/hyperledger/aries-framework-go/component/log"

var logger = log.New("offchain-framework/ledger")
