package metadata

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const AttachmentPrefix string = "CI"

// UngroupedAssetSeq is used when a checklist is not split by asset.
const UngroupedAssetSeq string = "0"

var attachmentNamePattern = regexp.MustCompile(`^CI_(\d+)_([A-Za-z0-9]+)_(\d+)\.([A-Za-z0-9]+)$`)

// AttachmentName identifies a checklist photo or video by asset position,
// checklist item and a per item serial.
type AttachmentName struct {
	AssetSeq string
	ItemID   string
	Serial   int
	Ext      string
}

func NewAttachmentName(assetSeq, itemID string, serial int, ext string) AttachmentName {
	if assetSeq == "" {
		assetSeq = UngroupedAssetSeq
	}

	return AttachmentName{
		AssetSeq: assetSeq,
		ItemID:   itemID,
		Serial:   serial,
		Ext:      strings.ToLower(strings.TrimPrefix(ext, ".")),
	}
}

// FileName renders CI_<assetSeq>_<itemId>_<serial>.<ext> with a three digit serial.
func (a AttachmentName) FileName() string {
	return fmt.Sprintf("%s_%s_%s_%03d.%s", AttachmentPrefix, a.AssetSeq, a.ItemID, a.Serial, a.Ext)
}

// GenerateAttachmentFileName is a shorthand for NewAttachmentName(...).FileName().
func GenerateAttachmentFileName(assetSeq, itemID string, serial int, ext string) string {
	name := NewAttachmentName(assetSeq, itemID, serial, ext)
	return name.FileName()
}

// ParseAttachmentFileName extracts the asset sequence and item id from a name
// produced by FileName. ok is false for names that do not follow the pattern.
func ParseAttachmentFileName(fileName string) (AttachmentName, bool) {
	m := attachmentNamePattern.FindStringSubmatch(filepath.Base(strings.TrimSpace(fileName)))
	if m == nil {
		return AttachmentName{}, false
	}

	serial, err := strconv.Atoi(m[3])
	if err != nil {
		return AttachmentName{}, false
	}

	return AttachmentName{
		AssetSeq: m[1],
		ItemID:   m[2],
		Serial:   serial,
		Ext:      strings.ToLower(m[4]),
	}, true
}

// ExtractInfoFromFileName returns the (assetSeq, itemID) pair encoded in fileName.
func ExtractInfoFromFileName(fileName string) (string, string, bool) {
	name, ok := ParseAttachmentFileName(fileName)
	if !ok {
		return "", "", false
	}
	return name.AssetSeq, name.ItemID, true
}

// FileExtension returns the lower-cased extension of name without the dot.
func FileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

var mediaExtensions = map[string]MediaKind{
	"jpg":  MediaImage,
	"jpeg": MediaImage,
	"png":  MediaImage,
	"gif":  MediaImage,
	"webp": MediaImage,
	"bmp":  MediaImage,
	"heic": MediaImage,
	"heif": MediaImage,
	"mp4":  MediaVideo,
	"mov":  MediaVideo,
	"avi":  MediaVideo,
	"webm": MediaVideo,
	"m4v":  MediaVideo,
	"3gp":  MediaVideo,
	"mkv":  MediaVideo,
}

// MediaKindForExtension classifies an extension; ok is false for anything that
// is neither a recognized image nor video type.
func MediaKindForExtension(ext string) (MediaKind, bool) {
	kind, ok := mediaExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return kind, ok
}
