package dictation

import (
	"errors"
	"fmt"
	"time"

	"go.aimuz.me/hark/audiocapture"
)

// minCalibratedThreshold is the floor for suggested thresholds; rooms
// quieter than this still produce a usable setting.
const minCalibratedThreshold = 100

// Calibrate listens to ambient noise for roughly the given duration and
// suggests a silence threshold: twice the loudest ambient peak, floored
// at minCalibratedThreshold. The caller keeps quiet while it runs.
func Calibrate(src audiocapture.Source, d time.Duration) (int32, error) {
	var peak int32
	var listened time.Duration

	for listened < d {
		frame, err := src.ReadFrame()
		if errors.Is(err, audiocapture.ErrOverflow) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("read calibration frame: %w", err)
		}

		if frame.Duration() <= 0 {
			return 0, errors.New("dictation: source produced an empty frame")
		}
		if p := Peak(frame.Samples); p > peak {
			peak = p
		}
		listened += frame.Duration()
	}

	threshold := peak * 2
	if threshold < minCalibratedThreshold {
		threshold = minCalibratedThreshold
	}
	return threshold, nil
}
