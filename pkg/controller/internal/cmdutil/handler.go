/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cmdutil

import (
	"net/http"

	"github.com/offchainapi/offchain-framework-go/pkg/controller/command"
)

// route is the part shared by REST and command handlers: a name or path plus a method.
type route struct {
	key    string
	method string
}

func (r route) Method() string {
	return r.method
}

// HTTPHandler binds an http.HandlerFunc to a path and an HTTP method.
type HTTPHandler struct {
	route
	handle http.HandlerFunc
}

// NewHTTPHandler returns a REST handler for path.
func NewHTTPHandler(path, method string, handle http.HandlerFunc) *HTTPHandler {
	return &HTTPHandler{route: route{key: path, method: method}, handle: handle}
}

// Path of the route, possibly holding mux variables.
func (h *HTTPHandler) Path() string {
	return h.key
}

// Handle returns the handler func.
func (h *HTTPHandler) Handle() http.HandlerFunc {
	return h.handle
}

// CommandHandler binds a command.Exec to a command name and method.
type CommandHandler struct {
	route
	handle command.Exec
}

// NewCommandHandler returns a controller command handler.
func NewCommandHandler(name, method string, exec command.Exec) *CommandHandler {
	return &CommandHandler{route: route{key: name, method: method}, handle: exec}
}

// Name of the command group, e.g. "offchain".
func (c *CommandHandler) Name() string {
	return c.key
}

// Handle returns the command function.
func (c *CommandHandler) Handle() command.Exec {
	return c.handle
}
