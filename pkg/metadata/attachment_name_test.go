package metadata

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateAttachmentFileName(t *testing.T) {
	tests := []struct {
		name     string
		assetSeq string
		itemID   string
		serial   int
		ext      string
		expected string
	}{
		{"ungrouped", "0", "1001", 1, "jpg", "CI_0_1001_001.jpg"},
		{"grouped with upper case ext", "2", "A17", 12, "JPG", "CI_2_A17_012.jpg"},
		{"dot prefixed ext", "3", "77", 5, ".MP4", "CI_3_77_005.mp4"},
		{"empty seq defaults to ungrouped", "", "5", 100, "png", "CI_0_5_100.png"},
		{"serial above padding", "1", "9", 1234, "png", "CI_1_9_1234.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GenerateAttachmentFileName(tt.assetSeq, tt.itemID, tt.serial, tt.ext))
		})
	}
}

func TestAttachmentFileNameRoundTrip(t *testing.T) {
	seqs := []string{"0", "1", "2", "15"}
	items := []string{"1001", "A17", "chk9", "X"}
	exts := []string{"jpg", "PNG", "mov", "webm"}

	for _, seq := range seqs {
		for _, item := range items {
			for serial := 1; serial <= 3; serial++ {
				for _, ext := range exts {
					fileName := GenerateAttachmentFileName(seq, item, serial, ext)
					gotSeq, gotItem, ok := ExtractInfoFromFileName(fileName)

					assert.True(t, ok, fileName)
					assert.Equal(t, seq, gotSeq, fileName)
					assert.Equal(t, item, gotItem, fileName)
				}
			}
		}
	}
}

func TestParseAttachmentFileName(t *testing.T) {
	name, ok := ParseAttachmentFileName("uploads/CI_2_A17_012.JPG")
	assert.True(t, ok)
	assert.Equal(t, AttachmentName{AssetSeq: "2", ItemID: "A17", Serial: 12, Ext: "jpg"}, name)

	for _, invalid := range []string{"", "photo.jpg", "CI_x_1_001.jpg", "CI_1_1_001", "CI_1_a-b_001.jpg", "CI_1_A_99999999999999999999.jpg"} {
		t.Run(fmt.Sprintf("invalid %q", invalid), func(t *testing.T) {
			_, ok := ParseAttachmentFileName(invalid)
			assert.False(t, ok)
		})
	}
}

func TestMediaKindForExtension(t *testing.T) {
	kind, ok := MediaKindForExtension(".JPEG")
	assert.True(t, ok)
	assert.Equal(t, MediaImage, kind)

	kind, ok = MediaKindForExtension("mov")
	assert.True(t, ok)
	assert.Equal(t, MediaVideo, kind)

	_, ok = MediaKindForExtension("pdf")
	assert.False(t, ok)
}
