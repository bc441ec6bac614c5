package hgt

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// blerp blends the samples at (row0, col0), (row1, col0), (row0, col1), and
// (row1, col1). dRow and dCol are the distances from the sample point to
// row1 and col1. Each column is blended across rows first, then the two
// results are blended across columns.
func blerp(v00, v10, v01, v11, dRow, dCol float64) float64 {
	top := lerp(v11, v01, dRow)
	bottom := lerp(v10, v00, dRow)
	return lerp(top, bottom, dCol)
}
