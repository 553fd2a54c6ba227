// Package simplestorage keeps tenant-scoped file metadata coherent with the
// content held in a pluggable blob backend.
//
// Two record kinds are managed: attachments, bound to a business entity and
// owner, and temporaries, which carry an expiry date and are purged by the
// cleanup scheduler. Metadata lives behind a generic Repository built over a
// Store driver (memory, postgres, sqlite); content lives behind a BlobStore
// (memory, fs, s3). The Service sequences the two so that metadata never
// references content that was not written.
//
// Basic usage:
//
//	attachments := simplestorage.NewAttachmentRepository(memory.NewAttachmentStore())
//	temporaries := simplestorage.NewTemporaryRepository(memory.NewTemporaryStore())
//	blobs := memorystorage.New()
//
//	svc, err := simplestorage.New(
//		simplestorage.WithAttachmentRepository(attachments),
//		simplestorage.WithTemporaryRepository(temporaries),
//		simplestorage.WithAttachmentBackend(simplestorage.NewAttachmentBackend("memory", blobs)),
//		simplestorage.WithTemporaryBackend(simplestorage.NewTemporaryBackend("memory", blobs)),
//	)
//
//	att, err := svc.UploadAttachment(ctx, simplestorage.UploadAttachmentRequest{
//		TenantID:    tenantID,
//		Entity:      "invoice",
//		OwnerID:     ownerID,
//		FileName:    "a.pdf",
//		ContentType: "application/pdf",
//		Body:        reader,
//	})
package simplestorage
