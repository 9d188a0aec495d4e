// Package storage persists the protocol's event journal and state snapshots
// in content-addressed storage backends.
//
// Every backend stores opaque bytes under their SHA-256 content ID, in a
// namespace per content type (events and snapshots):
//
//   - file:///var/lib/invoice-financing/
//   - s3://bucket-name/prefix/?region=us-west-2&endpoint=minio:9000
//   - ipfs://localhost:5001/invoice-financing
//   - vault://vault.example.com:8200/secret/invoice-financing?tls=true
//
// S3 credentials may be embedded in the URI as user info; otherwise the AWS
// default credential chain is used. Vault authenticates with the token in
// VAULT_TOKEN. The IPFS backend writes to the node's mutable file system so
// content can be fetched back by its SHA-256 ID.
//
// StorageBackendFactory builds backends from URIs and aggregates several of
// them into a MultiStorageBackend that writes everywhere and reads from the
// first backend holding the content.
//
// Journal is an interfaces.EventSink that persists every committed protocol
// event asynchronously and keeps an ordered index of their content IDs.
// SnapshotStore saves and loads complete registry.State values.
//
//	factory := storage.NewStorageBackendFactory(logger)
//	backend, err := factory.CreateMultiBackend([]string{"file:///var/lib/ifp", "s3://ifp-journal/"})
//
//	journal := storage.NewJournal(backend, 1024, logger)
//	go journal.Run(ctx)
//
//	snapshots := storage.NewSnapshotStore(backend, logger)
//	id, err := snapshots.Save(ctx, protocol.Snapshot())
package storage
