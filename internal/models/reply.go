package models

// Reply is an outbound bot message, optionally carrying a result file.
type Reply struct {
	Text           string
	AttachmentPath string
	AttachmentName string
	Caption        string
}
