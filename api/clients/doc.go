/*
Package clients provides a Go client for the invoice financing server.

FinancingClient mirrors the protocol operations one to one. Mutations are
signed with the client's secp256k1 key (see cryptoutils.SignRequest), so
the server attributes them to the key's address. Server failures come back
as *api.APIError values that unwrap to the protocol sentinels:

	client := clients.NewFinancingClient("http://127.0.0.1:8080", key, clients.ClientOpts{})

	if err := client.AssessRisk(ctx, "INV-2023-001", business, 75); errors.Is(err, interfaces.ErrNotAuthorized) {
	    // the key is not an assessor
	}

Lookups of absent records return found=false and no error.
*/
package clients
