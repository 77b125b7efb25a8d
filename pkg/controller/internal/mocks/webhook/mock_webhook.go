/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webhook

import "sync"

// Recorder keeps every notification it receives.
type Recorder struct {
	mu       sync.Mutex
	topics   []string
	messages [][]byte

	// Err is returned by Notify when set.
	Err error
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify records the message under topic.
func (r *Recorder) Notify(topic string, message []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}

	r.topics = append(r.topics, topic)
	r.messages = append(r.messages, message)

	return nil
}

// Messages returns the messages recorded for topic.
func (r *Recorder) Messages(topic string) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out [][]byte

	for i, t := range r.topics {
		if t == topic {
			out = append(out, r.messages[i])
		}
	}

	return out
}
