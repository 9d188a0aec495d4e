// Package main (cmd/financing_client) is a command line client for the
// invoice financing server.
//
// Each protocol operation is a subcommand. Mutations are signed with the key
// in --key-file, which generate-key creates (encrypted when
// --key-passphrase is set):
//
//	financing-client --key-file=business.key generate-key
//	financing-client --key-file=admin.key verify 0x2c9a...b1
//	financing-client --key-file=business.key register --invoice=INV-2023-001 \
//	    --amount=1000 --due-date=1672531200 --payer=0x4d2e...c1
//	financing-client --key-file=funder.key fund --business=0x2c9a...b1 --invoice=INV-2023-001
//	financing-client state --business=0x2c9a...b1 --invoice=INV-2023-001
package main
