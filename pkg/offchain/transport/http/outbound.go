/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"bytes"
	"crypto/tls"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/offchainapi/offchain-framework-go/pkg/offchain/transport"
)

// outboundCommHTTPOpts holds options for the HTTP outbound transport.
type outboundCommHTTPOpts struct {
	client *http.Client
}

// OutboundHTTPOpt is an outbound HTTP transport option.
type OutboundHTTPOpt func(opts *outboundCommHTTPOpts)

// WithOutboundHTTPClient option is for creating an Outbound HTTP transport using an http.Client instance.
func WithOutboundHTTPClient(client *http.Client) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.client = client
	}
}

// WithOutboundTimeout option sets the client timeout. It must follow the client option.
func WithOutboundTimeout(timeout time.Duration) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.client.Timeout = timeout
	}
}

// WithOutboundTLSConfig option is for creating an Outbound HTTP transport using a tls.Config instance.
func WithOutboundTLSConfig(tlsConfig *tls.Config) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.client = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		}
	}
}

// OutboundHTTPClient posts envelopes to the peer VASPs.
type OutboundHTTPClient struct {
	client *http.Client
}

// NewOutbound creates a new instance of Outbound HTTP transport.
// An http.Client or tls.Config option is mandatory.
func NewOutbound(opts ...OutboundHTTPOpt) (*OutboundHTTPClient, error) {
	clOpts := &outboundCommHTTPOpts{}

	for _, opt := range opts {
		opt(clOpts)
	}

	if clOpts.client == nil {
		return nil, errors.New("creation of outbound transport requires an HTTP client")
	}

	return &OutboundHTTPClient{client: clOpts.client}, nil
}

// Send posts data to url and returns the reply body.
func (cs *OutboundHTTPClient) Send(data []byte, url string) ([]byte, error) {
	resp, err := cs.client.Post(url, transport.ContentType, bytes.NewBuffer(data))
	if err != nil {
		logger.Errorf("posting envelope to [%s]: %v", url, err)

		return nil, err
	}

	defer func() {
		if e := resp.Body.Close(); e != nil {
			logger.Errorf("closing response body: %v", e)
		}
	}()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, errors.Errorf("received non success POST HTTP status from [%s]: status: %v", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read reply")
	}

	return body, nil
}

// Accept checks for the url scheme.
func (cs *OutboundHTTPClient) Accept(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
