/*
Package handlers serves the invoice financing protocol over HTTP.

Handler wraps a registry.Protocol and mounts one route per operation under
/api/v1 (see RegisterRoutes). Mutating routes sit behind an authentication
middleware that verifies the X-Caller-* signature headers and passes the
recovered address to the protocol as the caller; read routes are public.

Successful mutations answer {"success":true}. Funding answers with the
committed record plus its net amount. Reads of absent invoices, risk
records and fundings answer 404 ERR_NOT_FOUND. Failures use the error body
and status mapping from package api.

When a SnapshotSaver is configured, the admin can persist the full protocol
state with POST /api/v1/snapshot.
*/
package handlers
