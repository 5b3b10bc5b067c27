// Package job holds the pure pieces of the job lifecycle: photo zone
// coverage, the pause/resume work timer, add-on authorization rules and
// the status transition table. Orchestration with persistence and
// notifications lives in internal/service.
package job

import (
	"fmt"

	"github.com/glosspos/api/internal/enum"
)

// Body zones a photo can document.
const (
	ZoneFront         = "FRONT"
	ZoneRear          = "REAR"
	ZoneDriverSide    = "DRIVER_SIDE"
	ZonePassengerSide = "PASSENGER_SIDE"
	ZoneHood          = "HOOD"
	ZoneRoof          = "ROOF"
	ZoneWheels        = "WHEELS"

	ZoneDashboard  = "DASHBOARD"
	ZoneFrontSeats = "FRONT_SEATS"
	ZoneRearSeats  = "REAR_SEATS"
	ZoneCarpets    = "CARPETS"
	ZoneTrunk      = "TRUNK"
	ZoneDoorPanels = "DOOR_PANELS"
)

// zoneRegions classifies each zone. Unknown zones belong to no region
// and never count toward coverage.
var zoneRegions = map[string]string{
	ZoneFront:         enum.RegionExterior,
	ZoneRear:          enum.RegionExterior,
	ZoneDriverSide:    enum.RegionExterior,
	ZonePassengerSide: enum.RegionExterior,
	ZoneHood:          enum.RegionExterior,
	ZoneRoof:          enum.RegionExterior,
	ZoneWheels:        enum.RegionExterior,

	ZoneDashboard:  enum.RegionInterior,
	ZoneFrontSeats: enum.RegionInterior,
	ZoneRearSeats:  enum.RegionInterior,
	ZoneCarpets:    enum.RegionInterior,
	ZoneTrunk:      enum.RegionInterior,
	ZoneDoorPanels: enum.RegionInterior,
}

// ZoneRegion returns the region a zone belongs to, "" for unknown zones.
func ZoneRegion(zone string) string { return zoneRegions[zone] }

// Requirement is the minimum number of distinct photographed zones per
// region for one phase.
type Requirement struct {
	Exterior int
	Interior int
}

// RegionCoverage is the covered-vs-required state of one region.
type RegionCoverage struct {
	Region   string
	Covered  int
	Required int
}

// Met reports whether the region satisfies its minimum.
func (r RegionCoverage) Met() bool { return r.Covered >= r.Required }

// Coverage is the evaluated state of both regions for one phase.
type Coverage struct {
	Exterior RegionCoverage
	Interior RegionCoverage
}

// Met reports whether both regions satisfy their minimums.
func (c Coverage) Met() bool { return c.Exterior.Met() && c.Interior.Met() }

// Shortfall describes exactly what is missing, e.g.
// "1 more exterior zone" or "1 more exterior zone, 2 more interior zones".
// Empty when coverage is met.
func (c Coverage) Shortfall() string {
	var parts []string
	if !c.Exterior.Met() {
		parts = append(parts, shortfallPart(c.Exterior.Required-c.Exterior.Covered, "exterior"))
	}
	if !c.Interior.Met() {
		parts = append(parts, shortfallPart(c.Interior.Required-c.Interior.Covered, "interior"))
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return parts[0] + ", " + parts[1]
	}
}

func shortfallPart(n int, region string) string {
	if n == 1 {
		return fmt.Sprintf("1 more %s zone", region)
	}
	return fmt.Sprintf("%d more %s zones", n, region)
}

// CoveredZones counts zones in the region with at least one photo. Extra
// photos on a covered zone do not count again.
func CoveredZones(counts map[string]int, region string) int {
	covered := 0
	for zone, n := range counts {
		if n >= 1 && zoneRegions[zone] == region {
			covered++
		}
	}
	return covered
}

// EvaluateCoverage checks a photo-count map against a phase requirement.
func EvaluateCoverage(counts map[string]int, req Requirement) Coverage {
	return Coverage{
		Exterior: RegionCoverage{
			Region:   enum.RegionExterior,
			Covered:  CoveredZones(counts, enum.RegionExterior),
			Required: req.Exterior,
		},
		Interior: RegionCoverage{
			Region:   enum.RegionInterior,
			Covered:  CoveredZones(counts, enum.RegionInterior),
			Required: req.Interior,
		},
	}
}
