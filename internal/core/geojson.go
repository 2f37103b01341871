package core

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection renders bridges as Point features keyed by BIN, with
// every JSON field including status as properties. Bridges without
// coordinates sit at 0,0 like everywhere else in the API.
func FeatureCollection(bridges []Bridge) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, b := range bridges {
		f := geojson.NewFeature(orb.Point{b.Lon, b.Lat})
		f.ID = b.BIN
		f.Properties["bin"] = b.BIN
		f.Properties["status"] = b.Status()
		for _, key := range TextKeys() {
			f.Properties[key] = *b.Text(key)
		}
		fc.Append(f)
	}
	return fc
}
