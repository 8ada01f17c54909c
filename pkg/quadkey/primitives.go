package quadkey

import "math"

// Bounds of the spherical Mercator projection. Latitudes beyond these are clipped,
// where the projection would otherwise run off to infinity at the poles.
const (
	MinLatitude  = -85.05112878
	MaxLatitude  = 85.05112878
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// EarthRadius is the WGS-84 equatorial radius in meters.
const EarthRadius = 6378137.0

// TileSize is the edge length of a tile in pixels.
const TileSize = 256

// MaxPixelPrecision is the highest precision at which every pixel coordinate of the
// global raster fits in an int32. The codec does not enforce it.
const MaxPixelPrecision = 23

// Clip bounds n to [lo, hi]. NaN clips to lo.
func Clip(n, lo, hi float64) float64 {
	if !(n >= lo) {
		n = lo
	}
	if n > hi {
		n = hi
	}
	return n
}

// MapSize returns the side length in pixels of the global raster at precision.
func MapSize(precision uint) float64 {
	return math.Ldexp(TileSize, int(precision))
}

// GroundResolution returns the meters spanned by one pixel at the given latitude and
// precision.
func GroundResolution(latitude float64, precision uint) float64 {
	latitude = Clip(latitude, MinLatitude, MaxLatitude)
	return math.Cos(latitude*math.Pi/180) * 2 * math.Pi * EarthRadius / MapSize(precision)
}
