package station_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewind/windstats/internal/domain"
	"github.com/sitewind/windstats/internal/station"
)

// Piolenc, southern Rhone valley.
var testSite = domain.Site{Name: "piolenc", Latitude: 44.18, Longitude: 4.76}

func TestHaversineKm(t *testing.T) {
	// Paris to Marseille is about 660 km.
	d := station.HaversineKm(48.8566, 2.3522, 43.2965, 5.3698)
	assert.InDelta(t, 660, d, 5)

	// Zero distance for identical points.
	assert.InDelta(t, 0, station.HaversineKm(44.18, 4.76, 44.18, 4.76), 1e-9)
}

func TestNearest_RanksByDistance(t *testing.T) {
	candidates := []domain.Station{
		{ID: "far", Latitude: 45.5, Longitude: 4.8},
		{ID: "close", Latitude: 44.2, Longitude: 4.75},
		{ID: "mid", Latitude: 44.6, Longitude: 4.9},
	}

	got := station.Resolver{TopK: 3}.Nearest(testSite, candidates)
	require.Len(t, got, 3)
	assert.Equal(t, "close", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, "far", got[2].ID)
	assert.Less(t, got[0].DistanceKm, got[1].DistanceKm)
}

func TestNearest_DefaultTopK(t *testing.T) {
	candidates := []domain.Station{
		{ID: "a", Latitude: 44.2, Longitude: 4.7},
		{ID: "b", Latitude: 44.3, Longitude: 4.7},
		{ID: "c", Latitude: 44.4, Longitude: 4.7},
	}

	got := station.Resolver{}.Nearest(testSite, candidates)
	assert.Len(t, got, station.DefaultTopK)
}

func TestNearest_TieBreaks(t *testing.T) {
	// Same coordinates: longer record wins, then lexicographic id.
	candidates := []domain.Station{
		{ID: "b-short", Latitude: 44.2, Longitude: 4.75, RecordBegin: 2010, RecordEnd: 2020},
		{ID: "a-long", Latitude: 44.2, Longitude: 4.75, RecordBegin: 1980, RecordEnd: 2020},
		{ID: "c-short", Latitude: 44.2, Longitude: 4.75, RecordBegin: 2010, RecordEnd: 2020},
	}

	got := station.Resolver{TopK: 3}.Nearest(testSite, candidates)
	require.Len(t, got, 3)
	assert.Equal(t, "a-long", got[0].ID)
	assert.Equal(t, "b-short", got[1].ID)
	assert.Equal(t, "c-short", got[2].ID)
}

func TestNearest_MaxDistanceCutoff(t *testing.T) {
	candidates := []domain.Station{
		{ID: "near", Latitude: 44.2, Longitude: 4.75},
		{ID: "toulouse", Latitude: 43.6, Longitude: 1.44},
	}

	got := station.Resolver{TopK: 5, MaxDistanceKm: 80}.Nearest(testSite, candidates)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].ID)
}

func TestNearest_DoesNotMutateCandidates(t *testing.T) {
	candidates := []domain.Station{{ID: "a", Latitude: 44.2, Longitude: 4.75}}
	_ = station.Resolver{}.Nearest(testSite, candidates)
	assert.Zero(t, candidates[0].DistanceKm)
}
