package mathx

// FullScale is the top of every 16-bit scaled sample and duty value.
const FullScale = 65535

// ScaleU16 maps a 16-bit sample linearly onto [0, top].
// ScaleU16(0, top) == 0 and ScaleU16(FullScale, top) == top exactly.
func ScaleU16(raw uint16, top float64) float64 {
	if raw == FullScale {
		return top
	}
	return float64(raw) / FullScale * top
}

// U16FromFraction converts f in [0,1] to a 16-bit value, rounding to nearest.
// Out-of-range inputs are clamped.
func U16FromFraction(f float64) uint16 {
	f = Clamp(f, 0, 1)
	return uint16(f*FullScale + 0.5)
}

// StepToward moves cur by step toward to without overshooting.
func StepToward(cur, to uint16, step uint16) uint16 {
	if step == 0 {
		return to
	}
	if cur < to {
		if to-cur <= step {
			return to
		}
		return cur + step
	}
	if cur-to <= step {
		return to
	}
	return cur - step
}

