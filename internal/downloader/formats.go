package downloader

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/smallken99/youtube-mp4-downloader/internal/models"
)

// Info fetches title and available quality labels without downloading,
// highest quality first.
func (e *Engine) Info(ctx context.Context, videoID string) (*models.VideoInfo, error) {
	video, err := e.client.GetVideoContext(ctx, fmt.Sprintf(watchURL, videoID))
	if err != nil {
		return nil, &DownloadError{Detail: humanizeError(err), Err: err}
	}

	byHeight := make(map[int]string)
	for i := range video.Formats {
		f := &video.Formats[i]
		if !strings.Contains(f.MimeType, "video") || f.QualityLabel == "" {
			continue
		}
		if h := formatHeight(f); h > 0 {
			byHeight[h] = prettyQualityLabel(f.QualityLabel)
		}
	}

	heights := make([]int, 0, len(byHeight))
	for h := range byHeight {
		heights = append(heights, h)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(heights)))

	qualities := make([]string, 0, len(heights))
	for _, h := range heights {
		qualities = append(qualities, byHeight[h])
	}
	return &models.VideoInfo{Title: video.Title, Qualities: qualities}, nil
}

// bestVideoFormat picks the highest video stream at or under maxHeight,
// falling back to the best available when nothing fits the cap.
func bestVideoFormat(formats youtube.FormatList, maxHeight int) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !strings.Contains(f.MimeType, "video") {
			continue
		}
		h := formatHeight(f)
		if h == 0 || h > maxHeight {
			continue
		}
		if best == nil || h > formatHeight(best) {
			best = f
		}
	}
	if best == nil {
		for i := range formats {
			f := &formats[i]
			if !strings.Contains(f.MimeType, "video") {
				continue
			}
			if best == nil || formatHeight(f) > formatHeight(best) {
				best = f
			}
		}
	}
	return best
}

// bestAudioFormat prefers mp4-family audio so the mux step can copy
// streams without re-encoding.
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !strings.Contains(f.MimeType, "audio") {
			continue
		}
		if best == nil || (strings.Contains(f.MimeType, "mp4") && !strings.Contains(best.MimeType, "mp4")) {
			best = f
		}
	}
	return best
}

// bestPremergedFormat picks a stream that already carries both audio and
// video, capped at maxHeight, else the best pre-merged one available.
func bestPremergedFormat(formats youtube.FormatList, maxHeight int) *youtube.Format {
	var best, any *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !strings.Contains(f.MimeType, "video") || f.AudioChannels == 0 {
			continue
		}
		h := formatHeight(f)
		if any == nil || h > formatHeight(any) {
			any = f
		}
		if h == 0 || h > maxHeight {
			continue
		}
		if best == nil || h > formatHeight(best) {
			best = f
		}
	}
	if best == nil {
		return any
	}
	return best
}

func formatHeight(f *youtube.Format) int {
	if f.Height > 0 {
		return f.Height
	}
	return parseHeight(f.QualityLabel)
}

// parseHeight reads the leading digits of a quality label ("1080p60" -> 1080)
func parseHeight(label string) int {
	digits := ""
	for _, c := range label {
		if c < '0' || c > '9' {
			break
		}
		digits += string(c)
	}
	if digits == "" {
		return 0
	}
	val, _ := strconv.Atoi(digits)
	return val
}

var qualityLabelRe = regexp.MustCompile(`^(\d+p)(\d+)?$`)

// prettyQualityLabel turns "1080p60" into "1080p 60fps"
func prettyQualityLabel(q string) string {
	m := qualityLabelRe.FindStringSubmatch(q)
	if len(m) > 1 {
		if len(m) > 2 && m[2] != "" {
			return fmt.Sprintf("%s %sfps", m[1], m[2])
		}
		return m[1]
	}
	return q
}
