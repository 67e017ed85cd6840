package models

import "strings"

type CheckStatus string

const (
	CheckUnset CheckStatus = "unset"
	CheckPass  CheckStatus = "pass"
	CheckFail  CheckStatus = "fail"
	CheckNA    CheckStatus = "na"
)

func (s CheckStatus) IsValid() bool {
	switch s {
	case CheckUnset, CheckPass, CheckFail, CheckNA:
		return true
	}
	return false
}

type ChecklistItem struct {
	ID          string      `json:"id"`
	Sequence    int         `json:"sequence"`
	Title       string      `json:"title"`
	Standard    string      `json:"standard,omitempty"`
	Status      CheckStatus `json:"status"`
	Note        string      `json:"note,omitempty"`
	Media       []Media     `json:"media"`
	AssetNum    string      `json:"assetNum,omitempty"`
	AssetName   string      `json:"assetName,omitempty"`
	WorkOrderID string      `json:"workOrderId,omitempty"`
}

// CompositeID identifies an item within a work order, item ids repeat across assets.
func (c ChecklistItem) CompositeID() string {
	return c.ID + c.AssetNum
}

func (c ChecklistItem) IsComplete() bool {
	return c.Status != "" && c.Status != CheckUnset
}

// LocalMediaPrefix marks media that only exist in the draft and were never stored server side.
const LocalMediaPrefix = "local-"

type Media struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	URL        string `json:"url"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

func (m Media) IsLocal() bool {
	return strings.HasPrefix(m.ID, LocalMediaPrefix)
}
