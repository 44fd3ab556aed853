package facematch

// BoxArea returns the area of a bounding box [x1, y1, x2, y2].
// Malformed or inverted boxes have area 0.
func BoxArea(bbox []float64) float64 {
	if len(bbox) != 4 {
		return 0
	}
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// LargestBox returns the index of the box with the strictly largest area.
// Ties go to the earliest box. Returns -1 when no box has a positive area.
func LargestBox(boxes [][]float64) int {
	best := -1
	bestArea := 0.0
	for i, box := range boxes {
		if area := BoxArea(box); area > bestArea {
			best = i
			bestArea = area
		}
	}
	return best
}
