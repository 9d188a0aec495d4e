// Package main (cmd/httpserver) runs the invoice financing protocol server.
//
// The server holds the four registries in memory behind one protocol
// instance and exposes every operation over HTTP. Fundings settle through a
// ledger:
//
//   - memory: balances kept in process, seeded with --fund address=amount
//   - eth: native transfers of the net amount from an escrow key; the escrow
//     is also the fee sink
//
// With one or more --storage URIs every committed operation is journaled to
// the backends and the admin may store snapshots, one of which can be
// restored at startup with --restore-snapshot.
//
// Example usage:
//
//	financing-server --listen-addr=0.0.0.0:8080 \
//	    --admin=0x2c9a...e1 --assessor=0x7b1f...02 --fee-bps=500 \
//	    --fund=0x9f3e...f1=1000000 \
//	    --storage=file:///var/lib/financing
package main
