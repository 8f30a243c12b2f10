package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/raine/visual-measurement/internal/measurement"
)

const (
	// colorMergeDistance is the RGB distance under which two colors merge.
	colorMergeDistance = 50.0
	maxDominantColors  = 3
)

type rgb struct{ r, g, b int }

func parseHex(hex string) (rgb, bool) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return rgb{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return rgb{}, false
	}
	return rgb{int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)}, true
}

func (c rgb) hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.r, c.g, c.b)
}

func (c rgb) distance(o rgb) float64 {
	dr, dg, db := float64(c.r-o.r), float64(c.g-o.g), float64(c.b-o.b)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

type colorGroup struct {
	members []measurement.ColorEntry
	rep     measurement.ColorEntry
	rgb     rgb
}

func newGroup(c measurement.ColorEntry) *colorGroup {
	g := &colorGroup{members: []measurement.ColorEntry{c}}
	g.refresh()
	return g
}

// refresh recomputes the representative entry from all members. The hex is
// the truncated mean of member colors and the name comes from the member
// with the largest coverage.
func (g *colorGroup) refresh() {
	var sr, sg, sb int
	var coverage float64
	top := g.members[0]
	for _, m := range g.members {
		v, _ := parseHex(m.Hex)
		sr += v.r
		sg += v.g
		sb += v.b
		coverage += m.Coverage
		if m.Coverage > top.Coverage {
			top = m
		}
	}
	n := len(g.members)
	g.rgb = rgb{sr / n, sg / n, sb / n}
	g.rep = measurement.ColorEntry{
		Name:     top.Name,
		Hex:      g.rgb.hex(),
		Coverage: math.Min(coverage, 100),
	}
}

func (g *colorGroup) matches(name string, value rgb) bool {
	return strings.EqualFold(strings.TrimSpace(g.rep.Name), strings.TrimSpace(name)) ||
		g.rgb.distance(value) < colorMergeDistance
}

// DedupeColors merges colors that share a name (case-insensitive) or lie
// within RGB distance 50 of each other, and returns at most three groups by
// descending coverage. Groups are merged until no two representatives
// match, so applying it to its own output changes nothing.
func DedupeColors(colors []measurement.ColorEntry) []measurement.ColorEntry {
	var groups []*colorGroup
	for _, c := range colors {
		value, ok := parseHex(c.Hex)
		if !ok {
			continue
		}
		placed := false
		for _, g := range groups {
			if g.matches(c.Name, value) {
				g.members = append(g.members, c)
				g.refresh()
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, newGroup(c))
		}
	}

	for merged := true; merged; {
		merged = false
	outer:
		for i := 0; i < len(groups); i++ {
			for j := i + 1; j < len(groups); j++ {
				if groups[i].matches(groups[j].rep.Name, groups[j].rgb) {
					groups[i].members = append(groups[i].members, groups[j].members...)
					groups[i].refresh()
					groups = append(groups[:j], groups[j+1:]...)
					merged = true
					break outer
				}
			}
		}
	}

	out := make([]measurement.ColorEntry, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.rep)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Coverage > out[j].Coverage
	})
	if len(out) > maxDominantColors {
		out = out[:maxDominantColors]
	}
	return out
}
