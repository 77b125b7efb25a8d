/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hyperledger/aries-framework-go/spi/log"
)

// DecodeArgs reads the JSON arguments of a command into args. An empty body leaves args untouched.
func DecodeArgs(r io.Reader, args interface{}) error {
	err := json.NewDecoder(r).Decode(args)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	return fmt.Errorf("request decode: %w", err)
}

// WriteResponse encodes result as the JSON response of a command, writing {} for a nil result.
func WriteResponse(w io.Writer, result interface{}, l log.Logger) {
	if result == nil {
		result = struct{}{}
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		l.Errorf("write command response: %v", err)
	}
}
