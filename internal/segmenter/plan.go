// ABOUTME: Pure segment planning for a video of known duration
// ABOUTME: Computes fixed-length ranges, tail merging, and frame sample times
package segmenter

import (
	"fmt"
	"strconv"

	"github.com/harper/videorag/internal/models"
)

// Plan splits [0, duration) into segments of segmentLength seconds. When more
// than one segment exists and the tail after the last start is at most minTail
// seconds, the tail is merged into the previous segment. Each segment gets
// frames evenly spaced sample times, starting at its start and excluding its end.
func Plan(duration float64, segmentLength, minTail, frames int) ([]models.Segment, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %v", duration)
	}
	if segmentLength <= 0 {
		return nil, fmt.Errorf("segment length must be positive, got %d", segmentLength)
	}
	if frames <= 0 {
		return nil, fmt.Errorf("frames per segment must be positive, got %d", frames)
	}

	var starts []float64
	for i := 0; float64(i*segmentLength) < duration; i++ {
		starts = append(starts, float64(i*segmentLength))
	}
	if len(starts) > 1 && duration-starts[len(starts)-1] <= float64(minTail) {
		starts = starts[:len(starts)-1]
	}

	segments := make([]models.Segment, len(starts))
	for i, start := range starts {
		end := duration
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		segments[i] = models.Segment{
			Index:      i,
			TimeRange:  models.TimeRange{Start: start, End: end},
			FrameTimes: frameTimes(start, end, frames),
		}
	}
	return segments, nil
}

func frameTimes(start, end float64, n int) []float64 {
	step := (end - start) / float64(n)
	times := make([]float64, n)
	for k := range times {
		times[k] = start + float64(k)*step
	}
	return times
}

// SegmentName is the cache artifact base name: {tag}-{index}-{start}-{end}
func SegmentName(tag string, seg models.Segment) string {
	return fmt.Sprintf("%s-%d-%s-%s", tag, seg.Index,
		strconv.FormatFloat(seg.TimeRange.Start, 'f', -1, 64),
		strconv.FormatFloat(seg.TimeRange.End, 'f', -1, 64))
}
