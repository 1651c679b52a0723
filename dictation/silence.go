package dictation

// Peak returns the largest absolute sample value in the frame.
// The int16 minimum negates safely because the math is done in int32.
func Peak(samples []int16) int32 {
	var peak int32
	for _, s := range samples {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// IsSilent reports whether the frame counts as silence: its peak
// amplitude is below threshold. Pure function of its inputs.
func IsSilent(samples []int16, threshold int32) bool {
	return Peak(samples) < threshold
}
