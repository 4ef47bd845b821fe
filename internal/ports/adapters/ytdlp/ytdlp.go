package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strings"

	"github.com/forPelevin/linerank/internal/types"
)

// ErrAgeRestricted means yt-dlp could not read the video without signing in.
var ErrAgeRestricted = errors.New("video is age-restricted")

const ageGateMarker = "Sign in to confirm your age"

type Adapter struct {
	bin       string
	cookies   string
	extraArgs []string
}

func New(binPath, cookiesFromBrowser string, extraArgs []string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &Adapter{bin: binPath, cookies: cookiesFromBrowser, extraArgs: append([]string(nil), extraArgs...)}
}

// Popularity dumps the video metadata and keeps counters and heatmap.
func (a *Adapter) Popularity(ctx context.Context, ep types.Episode) (types.Popularity, error) {
	if ep.ID == "" {
		return types.Popularity{}, errors.New("yt-dlp: empty video id")
	}
	cmd := exec.CommandContext(ctx, a.bin, a.args(ep.ID)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if strings.Contains(stderr.String(), ageGateMarker) {
			return types.Popularity{}, fmt.Errorf("yt-dlp %s: %w", ep.ID, ErrAgeRestricted)
		}
		return types.Popularity{}, fmt.Errorf("yt-dlp dump json: %w\n%s", err, stderr.String())
	}
	return decodeDump(stdout.Bytes())
}

func (a *Adapter) args(videoID string) []string {
	args := []string{"--dump-json", "--skip-download", "--no-warnings"}
	if a.cookies != "" {
		args = append(args, "--cookies-from-browser", a.cookies)
	}
	args = append(args, a.extraArgs...)
	return append(args, "https://www.youtube.com/watch?v="+videoID)
}

type dump struct {
	ViewCount    int64 `json:"view_count"`
	LikeCount    int64 `json:"like_count"`
	CommentCount int64 `json:"comment_count"`
	Heatmap      []struct {
		StartTime float64 `json:"start_time"`
		EndTime   float64 `json:"end_time"`
		Value     float64 `json:"value"`
	} `json:"heatmap"`
}

// decodeDump widens each heatmap sample to whole seconds and scales its
// 0..1 value to 0..100.
func decodeDump(b []byte) (types.Popularity, error) {
	var d dump
	if err := json.Unmarshal(b, &d); err != nil {
		return types.Popularity{}, fmt.Errorf("decode yt-dlp json: %w", err)
	}
	pop := types.Popularity{
		ViewCount:    d.ViewCount,
		LikeCount:    d.LikeCount,
		CommentCount: d.CommentCount,
		Heatmap:      make([]types.HeatmapSegment, 0, len(d.Heatmap)),
	}
	for _, h := range d.Heatmap {
		v := int(math.Floor(h.Value*100 + 0.5))
		if v < 0 {
			v = 0
		}
		pop.Heatmap = append(pop.Heatmap, types.HeatmapSegment{
			Start: int(math.Floor(h.StartTime)),
			End:   int(math.Ceil(h.EndTime)),
			Value: v,
		})
	}
	return pop, nil
}
