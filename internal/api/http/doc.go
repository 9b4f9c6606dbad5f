// Package http exposes the repository catalog and the package renderer over
// JSON. Every route accepts and returns JSON; failures are rendered in the
// shared error shape with the status chosen by apierr.Translate.
package http
