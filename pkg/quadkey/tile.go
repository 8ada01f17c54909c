package quadkey

import "strings"

// PixelToTile returns the tile containing a pixel. Only non-negative pixels are
// meaningful; division truncates toward zero.
func PixelToTile(x, y int32) (tileX, tileY int32) {
	return x / TileSize, y / TileSize
}

// TileToPixel returns the pixel at the north-west corner of a tile.
func TileToPixel(tileX, tileY int32) (x, y int32) {
	return tileX * TileSize, tileY * TileSize
}

// TileToQuadkey encodes the low precision bits of tileX and tileY, most significant
// level first. Bits outside that window are ignored, so out-of-grid tiles encode
// without error.
func TileToQuadkey(tileX, tileY int32, precision uint) string {
	var b strings.Builder
	b.Grow(int(precision))
	for i := precision; i > 0; i-- {
		digit := byte('0')
		mask := int32(1) << (i - 1)
		if tileX&mask != 0 {
			digit++
		}
		if tileY&mask != 0 {
			digit += 2
		}
		b.WriteByte(digit)
	}
	return b.String()
}

// QuadkeyToTile decodes a quadkey. The precision is the key length.
func QuadkeyToTile(quadkey string) (tileX, tileY int32, precision uint, err error) {
	precision = uint(len(quadkey))
	for i := 0; i < len(quadkey); i++ {
		mask := int32(1) << (precision - uint(i) - 1)
		switch c := quadkey[i]; c {
		case '0':
		case '1':
			tileX |= mask
		case '2':
			tileY |= mask
		case '3':
			tileX |= mask
			tileY |= mask
		default:
			return 0, 0, 0, &InvalidQuadkeyError{Quadkey: quadkey, Offset: i, Char: c}
		}
	}
	return tileX, tileY, precision, nil
}
