package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnapshotStates(t *testing.T) {
	var empty Snapshot
	require.True(t, empty.Empty())
	require.False(t, empty.Partial())
	require.False(t, empty.Complete())

	summaryOnly := Snapshot{Summary: &Summary{CityName: "Paris"}}
	require.True(t, summaryOnly.Partial())
	require.False(t, summaryOnly.Complete())

	both := Snapshot{Summary: &Summary{}, Detail: &Detail{}}
	require.True(t, both.Complete())

	stale := Snapshot{Summary: &Summary{}, Detail: &Detail{}, Stale: PartDetail}
	require.False(t, stale.Complete())
	require.True(t, stale.Partial())
}

func TestSnapshotConsistent(t *testing.T) {
	s := Snapshot{
		Summary: &Summary{Coordinates: Coordinates{Latitude: 6.9271, Longitude: 79.8612}},
		Detail:  &Detail{Coordinates: Coordinates{Latitude: 6.93, Longitude: 79.86}},
	}
	require.True(t, s.Consistent(0.01))
	require.False(t, s.Consistent(0.0001))
}

func TestCoordinatesValid(t *testing.T) {
	require.True(t, Coordinates{Latitude: -90, Longitude: 180}.Valid())
	require.False(t, Coordinates{Latitude: 90.5}.Valid())
	require.False(t, Coordinates{Longitude: -181}.Valid())
}

func TestIsDaytime(t *testing.T) {
	rise, set := int64(1000), int64(2000)
	d := Detail{Current: Current{Sunrise: &rise, Sunset: &set}}

	require.False(t, d.IsDaytime(time.Unix(999, 0)))
	require.True(t, d.IsDaytime(time.Unix(1000, 0)))
	require.False(t, d.IsDaytime(time.Unix(2000, 0)))

	// A zero sunrise is a real timestamp, not "absent".
	zero := int64(0)
	d = Detail{Current: Current{Sunrise: &zero, Sunset: &set}}
	require.True(t, d.IsDaytime(time.Unix(10, 0)))
}

func TestCardinalDirection(t *testing.T) {
	cases := map[float64]string{
		0:     "N",
		22.4:  "N",
		22.5:  "NE",
		90:    "E",
		180:   "S",
		250:   "W",
		337.6: "N",
		359:   "N",
		-45:   "NW",
		405:   "NE",
	}
	for deg, want := range cases {
		require.Equal(t, want, CardinalDirection(deg), "degrees=%v", deg)
	}
}

func TestConditionGroup(t *testing.T) {
	require.Equal(t, GroupStorm, ConditionGroup(211))
	require.Equal(t, GroupRain, ConditionGroup(301))
	require.Equal(t, GroupRain, ConditionGroup(502))
	require.Equal(t, GroupSnow, ConditionGroup(601))
	require.Equal(t, GroupMist, ConditionGroup(741))
	require.Equal(t, GroupClear, ConditionGroup(800))
	require.Equal(t, GroupCloudy, ConditionGroup(804))
	require.Equal(t, GroupUnknown, ConditionGroup(0))
	require.Equal(t, GroupUnknown, Primary(nil))
}
