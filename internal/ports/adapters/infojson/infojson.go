// Package infojson builds the metadata table from yt-dlp style .info.json
// files.
package infojson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/forPelevin/vidalign/internal/types"
)

// Columns are the descriptive metadata columns produced for every video, in
// output order.
var Columns = []string{
	"title",
	"upload_date",
	"channel_id",
	"channel_title",
	"channel_subscriber_count",
	"channel_is_verified",
	"video_view_count",
	"video_like_count",
	"video_comment_count",
	"description",
	"tags",
	"categories",
	"subtitles_are_provided",
	"age_limit",
	"is_live",
	"was_live",
	"privacy_setting",
	"audio_sampling_rate",
	"audio_channels",
	"height",
	"width",
	"resolution",
	"dynamic_range",
	"aspect_ratio",
}

type info struct {
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	UploadDate           string   `json:"upload_date"`
	ChannelID            string   `json:"channel_id"`
	Channel              string   `json:"channel"`
	ChannelFollowerCount *int64   `json:"channel_follower_count"`
	ChannelIsVerified    *bool    `json:"channel_is_verified"`
	ViewCount            *int64   `json:"view_count"`
	LikeCount            *int64   `json:"like_count"`
	CommentCount         *int64   `json:"comment_count"`
	Duration             float64  `json:"duration"`
	Description          string   `json:"description"`
	Tags                 []string `json:"tags"`
	Categories           []string `json:"categories"`
	SubtitlesAreProvided *bool    `json:"subtitles_are_provided"`
	AgeLimit             *int64   `json:"age_limit"`
	IsLive               *bool    `json:"is_live"`
	WasLive              *bool    `json:"was_live"`
	Availability         string   `json:"availability"`
	FPS                  *float64 `json:"fps"`
	ASR                  *float64 `json:"asr"`
	AudioChannels        *int64   `json:"audio_channels"`
	Height               *int64   `json:"height"`
	Width                *int64   `json:"width"`
	FormatNote           string   `json:"format_note"`
	DynamicRange         string   `json:"dynamic_range"`
	AspectRatio          *float64 `json:"aspect_ratio"`
}

// Source reads every *.info.json file in Dir, ordered by file name.
type Source struct {
	Dir string
}

func (s *Source) Metadata(ctx context.Context) (types.MetadataTable, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "*.info.json"))
	if err != nil {
		return types.MetadataTable{}, err
	}
	sort.Strings(matches)

	mt := types.MetadataTable{Columns: append([]string(nil), Columns...)}
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return types.MetadataTable{}, err
		}
		v, err := ReadFile(path)
		if err != nil {
			return types.MetadataTable{}, err
		}
		mt.Videos = append(mt.Videos, v)
	}
	return mt, nil
}

func ReadFile(path string) (types.VideoMetadata, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.VideoMetadata{}, err
	}
	v, err := Decode(b)
	if err != nil {
		return types.VideoMetadata{}, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Decode maps one info document onto a metadata row. Missing engagement
// counts become 0 and a missing verification flag becomes false; other
// missing optional values are left empty.
func Decode(b []byte) (types.VideoMetadata, error) {
	var in info
	if err := json.Unmarshal(b, &in); err != nil {
		return types.VideoMetadata{}, fmt.Errorf("decode info: %w", err)
	}
	if in.ID == "" {
		return types.VideoMetadata{}, fmt.Errorf("decode info: missing id")
	}

	v := types.VideoMetadata{
		VideoID:         in.ID,
		DurationSeconds: in.Duration,
		Extra: map[string]string{
			"title":                    text(in.Title),
			"upload_date":              in.UploadDate,
			"channel_id":               in.ChannelID,
			"channel_title":            text(in.Channel),
			"channel_subscriber_count": countOrZero(in.ChannelFollowerCount),
			"channel_is_verified":      strconv.FormatBool(in.ChannelIsVerified != nil && *in.ChannelIsVerified),
			"video_view_count":         countOrZero(in.ViewCount),
			"video_like_count":         countOrZero(in.LikeCount),
			"video_comment_count":      countOrZero(in.CommentCount),
			"description":              text(in.Description),
			"tags":                     list(in.Tags),
			"categories":               list(in.Categories),
			"subtitles_are_provided":   optBool(in.SubtitlesAreProvided),
			"age_limit":                optInt(in.AgeLimit),
			"is_live":                  optBool(in.IsLive),
			"was_live":                 optBool(in.WasLive),
			"privacy_setting":          in.Availability,
			"audio_sampling_rate":      optFloat(in.ASR),
			"audio_channels":           optInt(in.AudioChannels),
			"height":                   optInt(in.Height),
			"width":                    optInt(in.Width),
			"resolution":               in.FormatNote,
			"dynamic_range":            in.DynamicRange,
			"aspect_ratio":             optFloat(in.AspectRatio),
		},
	}
	if in.FPS != nil {
		v.FPS = *in.FPS
	}
	return v, nil
}

func text(s string) string { return norm.NFC.String(strings.TrimSpace(s)) }

func countOrZero(n *int64) string {
	if n == nil {
		return "0"
	}
	return strconv.FormatInt(*n, 10)
}

func optInt(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func optBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func list(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(items)
	return string(b)
}
