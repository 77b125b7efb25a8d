/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPNotifier posts payment notifications to webhook URLs.
type HTTPNotifier struct {
	urls   []string
	client *http.Client
}

// NewHTTPNotifier returns a notifier posting to webhookURLs.
func NewHTTPNotifier(webhookURLs []string) *HTTPNotifier {
	return &HTTPNotifier{urls: webhookURLs, client: http.DefaultClient}
}

// Notify posts the wrapped message to every webhook. It returns the joined errors of the webhooks that
// did not answer with a 2xx status.
func (n *HTTPNotifier) Notify(topic string, message []byte) error {
	body, err := envelope(topic, message)
	if err != nil {
		return err
	}

	var errs error

	for _, url := range n.urls {
		if err := n.post(url, body); err != nil {
			errs = appendError(errs, err)

			continue
		}

		logger.Debugf("%s notification delivered to %s", topic, url)
	}

	return errs
}

func (n *HTTPNotifier) post(url string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), notificationSendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook %s: %w", url, err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", url, err)
	}

	// drained so that the connection is reused
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if err := resp.Body.Close(); err != nil {
		logger.Warnf("webhook %s: close response: %v", url, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook %s answered %s", url, resp.Status)
	}

	return nil
}
