package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"webmcut/internal/model"
	"webmcut/internal/util"
)

// ErrNoVideo is returned for inputs without a video stream.
var ErrNoVideo = errors.New("input has no video stream")

// Probe runs ffprobe on path and returns its stream layout and duration.
// A nil runner uses the default process runner.
func Probe(ctx context.Context, runner util.CmdRunner, ffprobePath, path string) (model.Source, error) {
	if ffprobePath == "" {
		return model.Source{}, errors.New("ffprobe path is required")
	}
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	res, err := util.Run(ctx, runner, util.CmdSpec{Path: ffprobePath, Args: args})
	if err != nil {
		if msg := strings.TrimSpace(string(res.Stderr)); msg != "" {
			return model.Source{}, fmt.Errorf("probe %s: %s: %w", path, lastLine(msg), err)
		}
		return model.Source{}, fmt.Errorf("probe %s: %w", path, err)
	}
	src, err := Parse(res.Stdout)
	if err != nil {
		return model.Source{}, fmt.Errorf("probe %s: %w", path, err)
	}
	src.Path = path
	return src, nil
}

// Parse converts ffprobe JSON output into a Source. Stream indexes are
// renumbered per type so they line up with ffmpeg's 0:v:N / 0:a:N / 0:s:N
// specifiers.
func Parse(data []byte) (model.Source, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return model.Source{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	var src model.Source
	var streamDur float64
	for _, s := range out.Streams {
		if d := parseFloat(s.Duration); d > streamDur {
			streamDur = d
		}
		switch s.CodecType {
		case "video":
			// Cover art is exposed as a one-frame video stream.
			if s.Disposition["attached_pic"] == 1 {
				continue
			}
			src.Video = append(src.Video, model.VideoStream{
				Index:     len(src.Video),
				Codec:     s.CodecName,
				Width:     s.Width,
				Height:    s.Height,
				FrameRate: frameRate(s.RFrameRate, s.AvgFrameRate),
			})
		case "audio":
			rate, _ := strconv.Atoi(s.SampleRate)
			src.Audio = append(src.Audio, model.AudioStream{
				Index:      len(src.Audio),
				Codec:      s.CodecName,
				Channels:   s.Channels,
				SampleRate: rate,
			})
		case "subtitle":
			src.Subtitles = append(src.Subtitles, model.SubtitleStream{
				Index:    len(src.Subtitles),
				Codec:    s.CodecName,
				Language: s.Tags["language"],
			})
		}
	}

	src.Duration = parseFloat(out.Format.Duration)
	if src.Duration <= 0 {
		src.Duration = streamDur
	}
	if len(src.Video) == 0 {
		return src, ErrNoVideo
	}
	return src, nil
}

// ParseFrameRate parses "num/den" or a plain decimal. Unknown rates such
// as "0/0" give 0.
func ParseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return n / d
	}
	return parseFloat(s)
}

// frameRate prefers the real base rate over the average.
func frameRate(r, avg string) float64 {
	if fps := ParseFrameRate(r); fps > 0 && fps < 1000 {
		return fps
	}
	return ParseFrameRate(avg)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
