// Package tools provides the built-in demo retrieval tools: small in-memory
// datasets of areas, buildings, and pop-up cases, plus a simulated online
// search. Production deployments replace these with real data sources
// through the same interface.
package tools

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/popspot/ragengine"
	"github.com/popspot/ragengine/internal/adapters"
	"github.com/popspot/ragengine/internal/catalog"
)

// SetupTools creates and returns a map of all built-in retrieval tools,
// keyed by the names the strategy catalog binds to.
func SetupTools() map[string]ragengine.Tool {
	return map[string]ragengine.Tool{
		catalog.ToolSearchAreas: adapters.NewFuncTool(
			catalog.ToolSearchAreas,
			SearchAreas,
			adapters.WithDescription("Searches commercial areas by name, vibe, foot traffic, and primary demographic."),
			adapters.WithValidator(validateQuery),
		),
		catalog.ToolSearchBuildings: adapters.NewFuncTool(
			catalog.ToolSearchBuildings,
			SearchBuildings,
			adapters.WithDescription("Searches rentable buildings and venues by area, size, and weekly rent."),
			adapters.WithValidator(validateQuery),
		),
		catalog.ToolSearchPopups: adapters.NewFuncTool(
			catalog.ToolSearchPopups,
			SearchPopups,
			adapters.WithDescription("Searches past pop-up store cases by brand, area, and outcome."),
			adapters.WithValidator(validateQuery),
		),
		catalog.ToolOnlineSearch: adapters.NewFuncTool(
			catalog.ToolOnlineSearch,
			OnlineSearch,
			adapters.WithDescription("Searches the open web for recent news and trends."),
			adapters.WithValidator(validateQuery),
		),
	}
}

type area struct {
	Name        string
	Vibe        string
	FootTraffic string
	Demographic string
}

type building struct {
	Name       string
	Area       string
	SizeSqm    int
	WeeklyRent int
}

type popupCase struct {
	Brand   string
	Area    string
	Concept string
	Outcome string
}

var areas = []area{
	{"Seongsu-dong", "industrial-chic cafes and galleries", "high on weekends", "20s-30s trend seekers"},
	{"Hongdae", "street performance and youth retail", "very high daily", "late teens and university students"},
	{"Hannam-dong", "quiet luxury boutiques", "moderate, steady", "30s-40s high spenders"},
	{"Yeonnam-dong", "residential cafe alleys", "moderate on weekends", "couples and small groups"},
	{"Garosu-gil", "designer flagship street", "high on weekends", "fashion-focused 20s-30s"},
}

var buildings = []building{
	{"Seongsu Warehouse B2", "Seongsu-dong", 180, 2400},
	{"Atelier Hannam", "Hannam-dong", 95, 3100},
	{"Hongdae Corner Unit", "Hongdae", 60, 1800},
	{"Yeonnam Garden House", "Yeonnam-dong", 120, 1500},
	{"Garosu Showroom 1F", "Garosu-gil", 140, 3600},
}

var popupCases = []popupCase{
	{"Glossier", "Seongsu-dong", "beauty counter with photo zones", "2-week run, lines every weekend"},
	{"Nike", "Hongdae", "sneaker customization lab", "strong social reach, modest direct sales"},
	{"Aesop", "Hannam-dong", "sensorial brand room", "high conversion, small footprint"},
	{"Gentle Monster", "Garosu-gil", "art installation showroom", "flagship-level press coverage"},
}

// SearchAreas matches the query against the area dataset.
func SearchAreas(ctx context.Context, query string) (string, error) {
	log.Printf("TOOL: Searching areas for '%s'", query)

	var matches []string
	for _, a := range areas {
		if matchesQuery(query, a.Name, a.Vibe, a.Demographic) {
			matches = append(matches, fmt.Sprintf("%s: %s; foot traffic %s; main visitors %s",
				a.Name, a.Vibe, a.FootTraffic, a.Demographic))
		}
	}
	return renderMatches("areas", matches), nil
}

// SearchBuildings matches the query against the building dataset.
func SearchBuildings(ctx context.Context, query string) (string, error) {
	log.Printf("TOOL: Searching buildings for '%s'", query)

	var matches []string
	for _, b := range buildings {
		if matchesQuery(query, b.Name, b.Area) {
			matches = append(matches, fmt.Sprintf("%s (%s): %d sqm, %d/week",
				b.Name, b.Area, b.SizeSqm, b.WeeklyRent))
		}
	}
	return renderMatches("buildings", matches), nil
}

// SearchPopups matches the query against the pop-up case dataset.
func SearchPopups(ctx context.Context, query string) (string, error) {
	log.Printf("TOOL: Searching pop-up cases for '%s'", query)

	var matches []string
	for _, p := range popupCases {
		if matchesQuery(query, p.Brand, p.Area, p.Concept) {
			matches = append(matches, fmt.Sprintf("%s in %s: %s; outcome: %s",
				p.Brand, p.Area, p.Concept, p.Outcome))
		}
	}
	return renderMatches("pop-up cases", matches), nil
}

// OnlineSearch simulates a web search.
func OnlineSearch(ctx context.Context, query string) (string, error) {
	log.Printf("TOOL: Online search for '%s'", query)
	return fmt.Sprintf("Simulated web results for %q: recent coverage notes growing pop-up activity "+
		"in converted industrial spaces, with weekend-only leases becoming common.", query), nil
}

// matchesQuery reports whether any query term appears in any of the fields,
// case-insensitively. An empty term set matches everything so broad queries
// still return the dataset.
func matchesQuery(query string, fields ...string) bool {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(strings.Join(fields, " "))
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}

func renderMatches(kind string, matches []string) string {
	if len(matches) == 0 {
		return fmt.Sprintf("No %s matched the query.", kind)
	}
	return fmt.Sprintf("Found %d %s:\n- %s", len(matches), kind, strings.Join(matches, "\n- "))
}

// validateQuery rejects empty and oversized queries before the tool runs.
func validateQuery(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if len(input) > 1000 {
		return fmt.Errorf("query too long (max 1000 characters)")
	}
	return nil
}
