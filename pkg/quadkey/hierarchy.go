package quadkey

import (
	"errors"
	"fmt"
)

// Parent returns the quadkey one level up. The parent of a single-digit key is "".
func Parent(quadkey string) (string, error) {
	if len(quadkey) == 0 {
		return "", errors.New("root quadkey has no parent")
	}
	return Ancestor(quadkey, uint(len(quadkey)-1))
}

// Ancestor returns the quadkey of the tile containing quadkey at a coarser precision.
// It is the prefix of that length.
func Ancestor(quadkey string, precision uint) (string, error) {
	if err := validate(quadkey); err != nil {
		return "", err
	}
	if precision > uint(len(quadkey)) {
		return "", fmt.Errorf("ancestor precision %d exceeds quadkey precision %d", precision, len(quadkey))
	}
	return quadkey[:precision], nil
}

// Children returns the four quadkeys one level down, in digit order.
func Children(quadkey string) ([]string, error) {
	if err := validate(quadkey); err != nil {
		return nil, err
	}
	out := make([]string, 4)
	for d := range out {
		out[d] = quadkey + string(rune('0'+d))
	}
	return out, nil
}

// TileBounds returns the geographic box covered by a tile.
func TileBounds(tileX, tileY int32, precision uint) (minLat, minLon, maxLat, maxLon float64) {
	size := MapSize(precision)
	x0 := float64(tileX)*TileSize/size - 0.5
	x1 := float64(tileX+1)*TileSize/size - 0.5
	y0 := 0.5 - float64(tileY)*TileSize/size
	y1 := 0.5 - float64(tileY+1)*TileSize/size
	maxLat, minLon = unproject(x0, y0)
	minLat, maxLon = unproject(x1, y1)
	return minLat, minLon, maxLat, maxLon
}

func validate(quadkey string) error {
	for i := 0; i < len(quadkey); i++ {
		if c := quadkey[i]; c < '0' || c > '3' {
			return &InvalidQuadkeyError{Quadkey: quadkey, Offset: i, Char: c}
		}
	}
	return nil
}
