/*
Package api defines the HTTP boundary of the invoice financing protocol.

It holds the server configuration, the JSON request and response types and
the mapping between protocol errors, wire codes and HTTP statuses. The
subpackages build on it:

 1. handlers - chi handlers for every protocol operation
 2. clients - a Go client for the same routes that signs its requests

# Error Responses

Every failing request returns

	{"success": false, "error": "ERR_INVALID_SCORE", "message": "..."}

with the status chosen by StatusForError: 401 for missing or invalid
caller signatures, 403 for role failures, 404 for absent records, 409 for
repeated single-shot operations and pipeline ordering failures, 400 for
invalid arguments and 502 when settlement fails. APIError turns such a body
back into an error matching the protocol sentinel.

# Caller Authentication

Mutating routes take the caller from the X-Caller-* headers verified by a
cryptoutils.CallerVerifier, which also refuses a signed request it has
already accepted. Read routes are public.
*/
package api
