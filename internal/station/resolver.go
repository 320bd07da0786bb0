// Package station ranks candidate observing stations for a site. It is a pure
// ranking function over provided candidates; it never fetches anything.
package station

import (
	"math"
	"sort"

	"github.com/sitewind/windstats/internal/domain"
)

const earthRadiusKm = 6371.0

// DefaultTopK is how many stations the resolver keeps when unconfigured.
const DefaultTopK = 2

// Resolver selects the closest candidate stations for a site.
type Resolver struct {
	// TopK limits how many ranked stations are returned. Zero means DefaultTopK.
	TopK int

	// MaxDistanceKm drops candidates farther than this from the site.
	// Zero means no distance cutoff.
	MaxDistanceKm float64
}

// Nearest returns up to TopK candidates ranked by great-circle distance to the
// site, ties broken by longer temporal coverage then by station id so the
// ordering is deterministic. Each returned station carries its distance in km.
func (r Resolver) Nearest(site domain.Site, candidates []domain.Station) []domain.Station {
	ranked := make([]domain.Station, 0, len(candidates))
	for _, c := range candidates {
		c.DistanceKm = HaversineKm(site.Latitude, site.Longitude, c.Latitude, c.Longitude)
		if r.MaxDistanceKm > 0 && c.DistanceKm > r.MaxDistanceKm {
			continue
		}
		ranked = append(ranked, c)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].DistanceKm != ranked[j].DistanceKm {
			return ranked[i].DistanceKm < ranked[j].DistanceKm
		}
		if ranked[i].CoverageYears() != ranked[j].CoverageYears() {
			return ranked[i].CoverageYears() > ranked[j].CoverageYears()
		}
		return ranked[i].ID < ranked[j].ID
	})

	k := r.TopK
	if k <= 0 {
		k = DefaultTopK
	}
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// HaversineKm computes the great-circle distance between two WGS-84
// coordinates in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
