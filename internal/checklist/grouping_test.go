package checklist

import (
	"fmt"
	"testing"

	"eam/pkg/models"

	"github.com/stretchr/testify/assert"
)

func item(id string, seq int, asset string) models.ChecklistItem {
	return models.ChecklistItem{ID: id, Sequence: seq, AssetNum: asset, Status: models.CheckUnset}
}

func countItems(groups []Group) map[string]int {
	seen := map[string]int{}
	for _, g := range groups {
		for _, it := range g.CheckItems {
			seen[it.CompositeID()]++
		}
	}
	return seen
}

func TestBuildGroupsCount(t *testing.T) {
	route := &models.Route{ID: "R1"}

	tests := []struct {
		name     string
		items    []models.ChecklistItem
		route    *models.Route
		expected int
	}{
		{"single asset", []models.ChecklistItem{item("1", 1, "A"), item("2", 2, "A")}, nil, 1},
		{"no asset numbers", []models.ChecklistItem{item("1", 1, ""), item("2", 2, "")}, nil, 1},
		{"two assets", []models.ChecklistItem{item("1", 1, "A"), item("1", 2, "B")}, nil, 2},
		{"three assets with orphan", []models.ChecklistItem{item("1", 1, "A"), item("2", 2, "B"), item("3", 3, "C"), item("4", 4, "")}, nil, 3},
		{"route with one asset", []models.ChecklistItem{item("1", 1, "A"), item("2", 2, "A")}, route, 1},
		{"route without assets", []models.ChecklistItem{item("1", 1, "")}, route, 1},
		{"route with two assets", []models.ChecklistItem{item("1", 1, "A"), item("2", 2, "B")}, route, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := BuildGroups(tt.items, Asset{}, tt.route, nil)
			assert.Len(t, groups, tt.expected)

			seen := countItems(groups)
			assert.Len(t, seen, len(tt.items))
			for id, n := range seen {
				assert.Equal(t, 1, n, id)
			}
		})
	}
}

func TestBuildGroupsEmpty(t *testing.T) {
	assert.Empty(t, BuildGroups(nil, Asset{}, nil, nil))
}

func TestBuildGroupsOrdering(t *testing.T) {
	items := []models.ChecklistItem{
		item("30", 30, "B"),
		item("10", 10, "A"),
		item("5", 5, "B"),
		item("20", 20, "A"),
		item("40", 10, "C"),
	}

	groups := BuildGroups(items, Asset{}, nil, nil)

	assert.Equal(t, []string{"B", "A", "C"}, []string{groups[0].AssetNum, groups[1].AssetNum, groups[2].AssetNum})
	assert.Equal(t, "5", groups[0].CheckItems[0].ID)
	assert.Equal(t, "30", groups[0].CheckItems[1].ID)
	assert.Equal(t, 5, groups[0].Sequence)
}

func TestBuildGroupsSingleKeepsOriginalOrder(t *testing.T) {
	items := []models.ChecklistItem{item("b", 2, "A"), item("a", 1, "A")}
	groups := BuildGroups(items, Asset{Num: "A", Name: "Pump"}, nil, nil)

	assert.Len(t, groups, 1)
	assert.Equal(t, "b", groups[0].CheckItems[0].ID)
	assert.Equal(t, "Pump", groups[0].AssetName)
}

func TestBuildGroupsOrphanJoinsWorkOrderAsset(t *testing.T) {
	items := []models.ChecklistItem{item("1", 1, "A"), item("2", 2, "B"), item("3", 3, "")}
	groups := BuildGroups(items, Asset{Num: "B"}, nil, nil)

	assert.Len(t, groups, 2)
	assert.Len(t, groups[1].CheckItems, 2)
	assert.Equal(t, "3", groups[1].CheckItems[1].ID)
}

func TestBuildGroupsExpansion(t *testing.T) {
	items := []models.ChecklistItem{item("1", 1, "A"), item("2", 2, "B"), item("3", 3, "C")}

	groups := BuildGroups(items, Asset{}, nil, nil)
	assert.True(t, groups[0].IsExpanded)
	assert.False(t, groups[1].IsExpanded)
	assert.False(t, groups[2].IsExpanded)

	groups = BuildGroups(items, Asset{}, nil, map[string]bool{"A": false, "C": true})
	assert.False(t, groups[0].IsExpanded)
	assert.True(t, groups[2].IsExpanded)

	groups = BuildGroups(items, Asset{}, nil, map[string]bool{"A": false})
	assert.False(t, groups[0].IsExpanded, "collapsed state is known")

	groups = BuildGroups(items, Asset{}, nil, map[string]bool{"Z": true})
	assert.True(t, groups[0].IsExpanded)
}

func TestCompletionOf(t *testing.T) {
	assert.Equal(t, NotApplicable, CompletionOf(nil))

	items := []models.ChecklistItem{item("1", 1, "A"), item("2", 2, "A")}
	assert.Equal(t, Incomplete, CompletionOf(items))

	items[0].Status = models.CheckPass
	items[1].Status = models.CheckNA
	assert.Equal(t, Complete, CompletionOf(items))
}

func TestGroupProgress(t *testing.T) {
	g := Group{CheckItems: []models.ChecklistItem{item("1", 1, "A"), item("2", 2, "A"), item("3", 3, "A")}}
	g.CheckItems[1].Status = models.CheckFail

	assert.Equal(t, Progress{Complete: 1, Total: 3}, g.Progress())
}

func ExampleBuildGroups() {
	items := []models.ChecklistItem{
		{ID: "1", Sequence: 2, AssetNum: "T02"},
		{ID: "1", Sequence: 1, AssetNum: "T01"},
	}
	for _, g := range BuildGroups(items, Asset{}, nil, nil) {
		fmt.Println(g.AssetNum, g.IsExpanded)
	}
	// Output:
	// T01 true
	// T02 false
}
