// Package common contains shared constants and sentinel errors used across
// chunkmail components.
package common

// Routes of the mail store HTTP contract. The client and the reference
// server both use these, so other clients must honour them as well.
const (
	RouteUploadChunk    = "/upload/chunk"
	RouteUploadComplete = "/upload/complete"
	RouteSend           = "/send"
	RouteEmails         = "/emails"
)

// Query parameters of RouteUploadChunk.
const (
	ParamFileID      = "fileId"
	ParamFileName    = "fileName"
	ParamChunkIndex  = "chunkIndex"
	ParamTotalChunks = "totalChunks"
)

// Multipart form fields of RouteSend.
const (
	FieldSender          = "sender"
	FieldRecipients      = "recipients"
	FieldSubject         = "subject"
	FieldBody            = "body"
	FieldAttachmentPaths = "attachmentPaths"
)
