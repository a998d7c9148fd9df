package markdown

import (
	"strings"

	"xarc/article"
)

// bestMediaURL picks the single representative URL for one media record:
// the original image, then the preview's original (the poster frame on
// videos), then the highest-bitrate rendition whose content type says video,
// then the first rendition no matter its type. Empty when nothing usable is
// populated.
func bestMediaURL(info *article.MediaInfo) string {
	if info == nil {
		return ""
	}
	if info.OriginalImgURL != "" {
		return info.OriginalImgURL
	}
	if info.PreviewImage != nil && info.PreviewImage.OriginalImgURL != "" {
		return info.PreviewImage.OriginalImgURL
	}
	if info.Video == nil || len(info.Video.Variants) == 0 {
		return ""
	}
	best := -1
	var bestRate int64 = -1
	for i, v := range info.Video.Variants {
		if !strings.Contains(v.ContentType, "video") {
			continue
		}
		if v.BitRate > bestRate {
			best, bestRate = i, v.BitRate
		}
	}
	if best >= 0 {
		return info.Video.Variants[best].URL
	}
	return info.Video.Variants[0].URL
}
