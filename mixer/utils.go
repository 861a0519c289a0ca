package mixer

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func slideTowards(v, target, step float64) float64 {
	if v < target {
		return min(v+step, target)
	}
	if v > target {
		return max(v-step, target)
	}
	return v
}
