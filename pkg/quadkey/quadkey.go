// Package quadkey converts between geographic coordinates, raster pixels, tiles and
// quadkeys in the spherical Mercator tiling scheme used by web maps.
//
// The forward chain is coordinates -> pixel -> tile -> quadkey and Decode walks it
// backwards. Every function is pure and safe for concurrent use.
package quadkey

// neighborOffsets lists tile offsets in row-major order with the identity at index 4.
var neighborOffsets = [9][2]int32{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {0, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// Encode returns the quadkey of the tile containing the coordinate at precision.
func Encode(latitude, longitude float64, precision uint) string {
	px, py := CoordinatesToPixel(latitude, longitude, precision)
	tx, ty := PixelToTile(px, py)
	return TileToQuadkey(tx, ty, precision)
}

// Decode returns the north-west corner of the tile named by quadkey, and its precision.
func Decode(quadkey string) (latitude, longitude float64, precision uint, err error) {
	tx, ty, precision, err := QuadkeyToTile(quadkey)
	if err != nil {
		return 0, 0, 0, err
	}
	px, py := TileToPixel(tx, ty)
	latitude, longitude = PixelToCoordinates(px, py, precision)
	return latitude, longitude, precision, nil
}

// Neighbors returns the 3x3 block of quadkeys centred on quadkey, row by row from the
// north-west. Index 4 is quadkey itself.
//
// Offsets are not bounds checked: at the edge of the grid a neighbor's tile index
// leaves [0, 2^precision) and its quadkey is whatever the in-range bits spell.
func Neighbors(quadkey string) ([]string, error) {
	tx, ty, precision, err := QuadkeyToTile(quadkey)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(neighborOffsets))
	for _, off := range neighborOffsets {
		out = append(out, TileToQuadkey(tx+off[0], ty+off[1], precision))
	}
	return out, nil
}

// MustDecode is like Decode but panics on an invalid quadkey.
func MustDecode(quadkey string) (latitude, longitude float64, precision uint) {
	latitude, longitude, precision, err := Decode(quadkey)
	if err != nil {
		panic(err)
	}
	return latitude, longitude, precision
}

// MustNeighbors is like Neighbors but panics on an invalid quadkey.
func MustNeighbors(quadkey string) []string {
	out, err := Neighbors(quadkey)
	if err != nil {
		panic(err)
	}
	return out
}
