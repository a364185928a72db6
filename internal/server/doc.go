// Package server hosts the Fiber HTTP service and the request middleware
// chain (request ids, panic recovery, access logging, JSON errors), plus the
// shared upstream http.Client. Route handlers live in the routes subpackage so
// that main can attach only the surfaces a deployment enables.
package server
