package postgres_adapter

import (
	"fmt"

	"github.com/mmcloughlin/geohash"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

const geohashPrecision = 9

// pointWKB точка (lon, lat) в WKB для ST_GeogFromWKB
func pointWKB(lat, lon float64) ([]byte, error) {
	p := geom.NewPointFlat(geom.XY, []float64{lon, lat})
	b, err := wkb.Marshal(p, wkb.NDR)
	if err != nil {
		return nil, fmt.Errorf("encode point: %w", err)
	}
	return b, nil
}

// latLonFromWKB обратное преобразование для ST_AsBinary(coordinates)
func latLonFromWKB(b []byte) (lat, lon float64, err error) {
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return 0, 0, fmt.Errorf("decode point: %w", err)
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return 0, 0, fmt.Errorf("expected point, got %T", g)
	}
	return p.Y(), p.X(), nil
}

func encodeGeohash(lat, lon float64) string {
	return geohash.EncodeWithPrecision(lat, lon, geohashPrecision)
}
