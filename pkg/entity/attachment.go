package entity

import "time"

// Attachment is a file attached to a transaction. Either BlobID references
// server-held content, or NewContent holds inline bytes awaiting upload.
type Attachment struct {
	ID            int64     `json:"id"`
	TransactionID int64     `json:"transaction_id"`
	Filename      string    `json:"filename"`
	BlobID        *int64    `json:"blob_id,omitempty"`
	NewContent    []byte    `json:"new_content,omitempty"`
	MimeType      string    `json:"mime_type,omitempty"`
	Deleted       bool      `json:"deleted"`
	LastChanged   time.Time `json:"last_changed"`
	WIP           bool      `json:"is_wip"`
}

func (a *Attachment) EntityID() int64            { return a.ID }
func (a *Attachment) IsDeleted() bool            { return a.Deleted }
func (a *Attachment) SetWorkInProgress(wip bool) { a.WIP = wip }
func (a *Attachment) Touch(now time.Time)        { a.LastChanged = now }

func (a *Attachment) Clone() *Attachment {
	out := *a
	if a.BlobID != nil {
		id := *a.BlobID
		out.BlobID = &id
	}
	if a.NewContent != nil {
		out.NewContent = append([]byte(nil), a.NewContent...)
	}
	return &out
}
