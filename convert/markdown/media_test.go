package markdown

import (
	"testing"

	"xarc/article"
)

func TestBestMediaURL(t *testing.T) {
	tests := []struct {
		name string
		info *article.MediaInfo
		want string
	}{
		{"nil info", nil, ""},
		{"empty info", &article.MediaInfo{}, ""},
		{
			"original image wins",
			&article.MediaInfo{
				OriginalImgURL: "https://orig",
				PreviewImage:   &article.PreviewImage{OriginalImgURL: "https://prev"},
			},
			"https://orig",
		},
		{
			"preview image when no original",
			&article.MediaInfo{PreviewImage: &article.PreviewImage{OriginalImgURL: "https://prev"}},
			"https://prev",
		},
		{
			"highest bitrate video variant",
			&article.MediaInfo{Video: &article.VideoInfo{Variants: []article.VideoVariant{
				{URL: "https://v1", BitRate: 256000, ContentType: "video/mp4"},
				{URL: "https://v2", BitRate: 832000, ContentType: "video/mp4"},
				{URL: "https://v3", BitRate: 0, ContentType: "application/x-mpegURL"},
			}}},
			"https://v2",
		},
		{
			"first variant when none is marked video",
			&article.MediaInfo{Video: &article.VideoInfo{Variants: []article.VideoVariant{
				{URL: "https://playlist", ContentType: "application/x-mpegURL"},
				{URL: "https://other", ContentType: "application/octet-stream"},
			}}},
			"https://playlist",
		},
		{
			"preview beats video",
			&article.MediaInfo{
				PreviewImage: &article.PreviewImage{OriginalImgURL: "https://poster"},
				Video: &article.VideoInfo{Variants: []article.VideoVariant{
					{URL: "https://v", BitRate: 1, ContentType: "video/mp4"},
				}},
			},
			"https://poster",
		},
		{
			"zero bitrate video still selected over nothing",
			&article.MediaInfo{Video: &article.VideoInfo{Variants: []article.VideoVariant{
				{URL: "https://v", BitRate: 0, ContentType: "video/mp4"},
			}}},
			"https://v",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := bestMediaURL(tc.info); got != tc.want {
				t.Fatalf("got = %q, want %q", got, tc.want)
			}
		})
	}
}
