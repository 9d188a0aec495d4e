// Package common holds process-wide identifiers and logging setup shared by
// the protocol binaries.
package common

var (
	// PackageName is used as the metrics namespace and the default log service tag.
	PackageName = "invoice_financing"

	// Version is set at build time via -ldflags.
	Version = "dev"
)
