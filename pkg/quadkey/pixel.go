package quadkey

import "math"

// CoordinatesToPixel projects a latitude/longitude onto the global raster at precision.
// Out-of-range coordinates are clipped, never rejected.
func CoordinatesToPixel(latitude, longitude float64, precision uint) (x, y int32) {
	latitude = Clip(latitude, MinLatitude, MaxLatitude)
	longitude = Clip(longitude, MinLongitude, MaxLongitude)

	fx := (longitude + 180) / 360
	sinLat := math.Sin(latitude * math.Pi / 180)
	fy := 0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)

	size := MapSize(precision)
	x = truncInt32(Clip(fx*size+0.5, 0, size-1))
	y = truncInt32(Clip(fy*size+0.5, 0, size-1))
	return x, y
}

// PixelToCoordinates is the inverse of CoordinatesToPixel. Pixels outside the raster
// are clipped onto its edge. The result is only as exact as one pixel.
func PixelToCoordinates(x, y int32, precision uint) (latitude, longitude float64) {
	size := MapSize(precision)
	fx := Clip(float64(x), 0, size-1)/size - 0.5
	fy := 0.5 - Clip(float64(y), 0, size-1)/size
	return unproject(fx, fy)
}

// unproject maps raster fractions centred on (0, 0) back to degrees.
func unproject(fx, fy float64) (latitude, longitude float64) {
	latitude = 90 - 360*math.Atan(math.Exp(-fy*2*math.Pi))/math.Pi
	longitude = 360 * fx
	return latitude, longitude
}

// truncInt32 truncates toward zero, saturating at the int32 range. NaN becomes 0.
func truncInt32(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}
