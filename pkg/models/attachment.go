package models

import "time"

// Attachment is a stored checklist photo or video.
type Attachment struct {
	ID          string    `json:"id"`
	WorkOrderID string    `json:"wonum"`
	FileName    string    `json:"fileName"`
	FileType    string    `json:"fileType"`
	URL         string    `json:"url"`
	CheckItemID string    `json:"checkItemId,omitempty"`
	AssetSeq    string    `json:"assetSeq,omitempty"`
	AssetNum    string    `json:"assetNum,omitempty"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UploadRequest is the attachment upload contract.
type UploadRequest struct {
	FileName    string `json:"fileName"`
	FileType    string `json:"fileType"`
	FileContent string `json:"fileContent"`
	Description string `json:"description"`
	WorkOrderID string `json:"wonum"`
	CheckItemID string `json:"checkItemId"`
	AssetSeq    string `json:"assetSeq"`
	PhotoSeq    string `json:"photoSeq"`
	AssetNum    string `json:"assetNum,omitempty"`
}
