// Package probe reads the track metadata needed for output paths and tagging.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"

	"github.com/stemtools/instrumentalize/internal/logging"
)

// Metadata is the per-file snapshot consumed by path construction, tagging and
// the separation stage. It is not persisted anywhere.
type Metadata struct {
	Artist string
	Album  string
	// Date is the raw probed date/year tag, e.g. "1994-03-01" or "1994".
	Date string

	SampleRate int
	BitDepth   int

	Duration time.Duration
}

// HighRes reports whether the source should be separated with the
// high-resolution encoding flag. Only exactly 24-bit sources qualify.
func (m Metadata) HighRes() bool {
	return m.BitDepth == 24
}

// runFFprobe is swappable for tests.
var runFFprobe = runFFprobeCommand

func runFFprobeCommand(ctx context.Context, path string) ([]byte, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,bits_per_sample,bits_per_raw_sample:format=duration:format_tags=artist,album,date,year",
		"-of", "json",
		path,
	}
	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(output))
		if trimmed == "" {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", err, trimmed)
	}
	return output, nil
}

// Read probes path and returns its metadata.
//
// A probe process failure is a real error, not an empty field: callers must be
// able to tell "tag absent" apart from "could not probe". Absent tags come
// back as empty strings.
func Read(ctx context.Context, path string) (Metadata, error) {
	output, err := runFFprobe(ctx, path)
	if err != nil {
		return Metadata{}, fmt.Errorf("probe %s: %w", path, err)
	}

	var payload struct {
		Streams []struct {
			SampleRate       string `json:"sample_rate"`
			BitsPerSample    int    `json:"bits_per_sample"`
			BitsPerRawSample string `json:"bits_per_raw_sample"`
		} `json:"streams"`
		Format struct {
			Duration string            `json:"duration"`
			Tags     map[string]string `json:"tags"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &payload); err != nil {
		return Metadata{}, fmt.Errorf("probe %s: decode output: %w", path, err)
	}

	meta := Metadata{
		Artist: tagValue(payload.Format.Tags, "artist"),
		Album:  tagValue(payload.Format.Tags, "album"),
		Date:   tagValue(payload.Format.Tags, "date"),
	}
	if meta.Date == "" {
		meta.Date = tagValue(payload.Format.Tags, "year")
	}

	if len(payload.Streams) > 0 {
		stream := payload.Streams[0]
		if v, err := strconv.Atoi(strings.TrimSpace(stream.SampleRate)); err == nil {
			meta.SampleRate = v
		}
		// Lossless codecs report the stored depth as bits_per_raw_sample;
		// fall back to the container field.
		if v, err := strconv.Atoi(strings.TrimSpace(stream.BitsPerRawSample)); err == nil && v > 0 {
			meta.BitDepth = v
		} else if stream.BitsPerSample > 0 {
			meta.BitDepth = stream.BitsPerSample
		}
	}

	if v, err := strconv.ParseFloat(strings.TrimSpace(payload.Format.Duration), 64); err == nil && v > 0 {
		meta.Duration = time.Duration(v * float64(time.Second))
	}

	if meta.Artist == "" && meta.Album == "" {
		fillTagsFromFile(ctx, path, &meta)
	}
	// VBR mp3 rips often carry no usable container duration; walk the frames.
	if meta.Duration == 0 && strings.EqualFold(filepath.Ext(path), ".mp3") {
		if d, err := mp3Duration(path); err == nil && d > 0 {
			meta.Duration = d
		} else if err != nil {
			logging.FromContext(ctx).Debug("mp3 duration fallback failed", "path", path, "err", err)
		}
	}

	return meta, nil
}

func tagValue(tags map[string]string, key string) string {
	for k, v := range tags {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// fillTagsFromFile reads the tags directly from the file as a second opinion
// when the probe reported none. Failures here are not fatal: the probe already
// succeeded, so empty tags stay empty.
func fillTagsFromFile(ctx context.Context, path string, meta *Metadata) {
	log := logging.FromContext(ctx)

	f, err := os.Open(path)
	if err != nil {
		log.Debug("tag fallback: open failed", "path", path, "err", err)
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		log.Debug("tag fallback: no readable tags", "path", path, "err", err)
		return
	}

	if meta.Artist == "" {
		meta.Artist = strings.TrimSpace(m.Artist())
	}
	if meta.Album == "" {
		meta.Album = strings.TrimSpace(m.Album())
	}
	if meta.Date == "" {
		if y := m.Year(); y > 0 {
			meta.Date = strconv.Itoa(y)
		}
	}
}
