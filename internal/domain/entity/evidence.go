package entity

import "time"

// Evidence references a signed paper document uploaded in place of a captured signature
type Evidence struct {
	ID                string    `json:"id"`
	ServiceApprovalID string    `json:"service_approval_id"`
	ServiceOrderID    string    `json:"service_order_id"`
	DocumentRef       string    `json:"document_ref"`
	FileName          string    `json:"file_name"`
	MimeType          string    `json:"mime_type"`
	Size              int64     `json:"size"`
	UploadedAt        time.Time `json:"uploaded_at"`
	UploadedBy        string    `json:"uploaded_by"`
}

// DocumentUpload is an uploaded signed document, either as raw content or as an
// existing reference (URL or storage path)
type DocumentUpload struct {
	FileName  string
	MimeType  string
	Content   []byte
	Reference string
}

// IsEmpty returns true when neither content nor a reference was supplied
func (d DocumentUpload) IsEmpty() bool {
	return len(d.Content) == 0 && d.Reference == ""
}
