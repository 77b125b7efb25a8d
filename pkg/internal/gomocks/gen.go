/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package gomocks holds the mocks used by the tests. Regenerate them with go generate.
package gomocks

//go:generate go run github.com/golang/mock/mockgen -destination storage/mocks.gen.go -package storage github.com/hyperledger/aries-framework-go/spi/storage Provider
//go:generate go run github.com/golang/mock/mockgen -destination transport/mocks.gen.go -package transport github.com/offchainapi/offchain-framework-go/pkg/offchain/transport OutboundTransport
//go:generate go run github.com/golang/mock/mockgen -destination controller/webnotifier/mocks.gen.go -package webnotifier github.com/offchainapi/offchain-framework-go/pkg/controller/webnotifier Notifier
