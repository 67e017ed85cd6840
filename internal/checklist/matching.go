package checklist

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"eam/pkg/metadata"
	"eam/pkg/models"
)

var (
	extSuffix  = regexp.MustCompile(`\.[A-Za-z0-9]{1,5}$`)
	wellFormed = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// AssetSequence lists the distinct non-default asset numbers in sorted order.
// Attachment names refer to assets by their 1-based position in this list.
func AssetSequence(items []models.ChecklistItem) []string {
	assets := distinctAssets(items)
	sort.Strings(assets)
	return assets
}

// AssetSeqFor returns the attachment name sequence of assetNum, "0" when the
// checklist is ungrouped or the asset is unknown.
func AssetSeqFor(items []models.ChecklistItem, route *models.Route, assetNum string) string {
	if !IsMultiAsset(items, route) {
		return metadata.UngroupedAssetSeq
	}
	for i, num := range AssetSequence(items) {
		if num == assetNum {
			return strconv.Itoa(i + 1)
		}
	}
	return metadata.UngroupedAssetSeq
}

func assetNumForSeq(items []models.ChecklistItem, seq string) string {
	assets := AssetSequence(items)
	if len(assets) == 0 {
		return ""
	}
	n, err := strconv.Atoi(seq)
	if err != nil || n < 0 || n > len(assets) {
		return ""
	}
	if n == 0 {
		return assets[0]
	}
	return assets[n-1]
}

// MatchAttachment finds the index of the checklist item att belongs to.
//
// Attachments tagged with both an item id and an asset number are matched
// exactly. Untagged ones fall back to the attachment name: the item id and
// asset sequence encoded in it, resolved against the sorted asset list, then
// matched by composite id, by id and asset, and finally by id alone.
func MatchAttachment(items []models.ChecklistItem, att models.Attachment) (int, bool) {
	if att.CheckItemID != "" && att.AssetNum != "" {
		for i, item := range items {
			if item.ID == att.CheckItemID && item.AssetNum == att.AssetNum {
				return i, true
			}
		}
	}

	itemID := extSuffix.ReplaceAllString(strings.TrimSpace(att.CheckItemID), "")
	assetSeq := strings.TrimSpace(att.AssetSeq)

	if parsed, ok := metadata.ParseAttachmentFileName(att.FileName); ok {
		if itemID == "" || !wellFormed.MatchString(itemID) {
			itemID = parsed.ItemID
		}
		if _, err := strconv.Atoi(assetSeq); err != nil {
			assetSeq = parsed.AssetSeq
		}
	}
	if itemID == "" {
		return -1, false
	}

	assetNum := att.AssetNum
	if assetNum == "" && assetSeq != "" {
		assetNum = assetNumForSeq(items, assetSeq)
	}

	if assetNum != "" {
		composite := itemID + assetNum
		for i, item := range items {
			if item.CompositeID() == composite {
				return i, true
			}
		}
		for i, item := range items {
			if strings.EqualFold(item.ID, itemID) && strings.EqualFold(item.AssetNum, assetNum) {
				return i, true
			}
		}
	}
	for i, item := range items {
		if strings.EqualFold(item.ID, itemID) {
			return i, true
		}
	}

	return -1, false
}

// mediaFor converts att into checklist media, ok is false for file types that
// are neither image nor video.
func mediaFor(att models.Attachment) (models.Media, bool) {
	ext := metadata.FileExtension(att.FileName)
	if ext == "" {
		ext = metadata.FileExtension(att.URL)
	}
	kind, ok := metadata.MediaKindForExtension(ext)
	if !ok {
		return models.Media{}, false
	}
	return models.Media{
		ID:       att.ID,
		Type:     string(kind),
		URL:      att.URL,
		FileName: att.FileName,
	}, true
}

func hasMedia(item models.ChecklistItem, m models.Media) bool {
	for _, existing := range item.Media {
		if existing.ID == m.ID || (m.URL != "" && existing.URL == m.URL) {
			return true
		}
	}
	return false
}
