// Package geodesy maps flat-earth world meters to geographic
// coordinates. The world plane is anchored at a configured origin and
// never re-projected per chunk; east/north offsets divide by fixed
// meters-per-degree factors, with the longitude factor scaled by the
// cosine of the origin latitude.
package geodesy

import "math"

// MetersPerDegreeLat is the default meridian arc length of one degree.
const MetersPerDegreeLat = 111320.0

// Mapper converts between world meters and lat/lon.
type Mapper struct {
	originLat          float64
	originLon          float64
	chunkSizeMeters    float64
	metersPerDegreeLat float64
	metersPerDegreeLon float64
}

// NewMapper builds a Mapper for the given origin. metersPerDegreeLat
// of 0 selects the default.
func NewMapper(originLat, originLon, chunkSizeMeters, metersPerDegreeLat float64) *Mapper {
	if metersPerDegreeLat == 0 {
		metersPerDegreeLat = MetersPerDegreeLat
	}
	return &Mapper{
		originLat:          originLat,
		originLon:          originLon,
		chunkSizeMeters:    chunkSizeMeters,
		metersPerDegreeLat: metersPerDegreeLat,
		metersPerDegreeLon: metersPerDegreeLat * math.Cos(originLat*math.Pi/180),
	}
}

// ChunkSizeMeters is the side length of one chunk on the world plane.
func (m *Mapper) ChunkSizeMeters() float64 { return m.chunkSizeMeters }

// WorldMetersToLatLon converts a world-plane point to geographic
// coordinates. worldZ increases northward, worldX eastward.
func (m *Mapper) WorldMetersToLatLon(worldX, worldZ float64) (lat, lon float64) {
	lat = m.originLat + worldZ/m.metersPerDegreeLat
	lon = m.originLon + worldX/m.metersPerDegreeLon
	return lat, lon
}

// GetChunkOriginLatLon returns the geographic position of a chunk's
// (0,0) corner.
func (m *Mapper) GetChunkOriginLatLon(chunkX, chunkZ int) (lat, lon float64) {
	return m.WorldMetersToLatLon(float64(chunkX)*m.chunkSizeMeters, float64(chunkZ)*m.chunkSizeMeters)
}
