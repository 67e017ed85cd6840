package checklist

import (
	"sort"
	"strings"

	"eam/pkg/models"
)

// Asset describes the equipment a work order is raised against.
type Asset struct {
	Num  string `json:"assetNum"`
	Name string `json:"assetName"`
}

// Group is the set of checklist items of one asset.
type Group struct {
	AssetNum   string                 `json:"assetNum"`
	AssetName  string                 `json:"assetName"`
	CheckItems []models.ChecklistItem `json:"checkItems"`
	IsExpanded bool                   `json:"isExpanded"`
	Sequence   int                    `json:"sequence"`
}

type Progress struct {
	Complete int `json:"complete"`
	Total    int `json:"total"`
}

func (g Group) Progress() Progress {
	p := Progress{Total: len(g.CheckItems)}
	for _, item := range g.CheckItems {
		if item.IsComplete() {
			p.Complete++
		}
	}
	return p
}

// IsMultiAsset reports whether items are split per asset: more than one
// distinct asset number, or the work order follows a route.
func IsMultiAsset(items []models.ChecklistItem, route *models.Route) bool {
	return route != nil || len(distinctAssets(items)) > 1
}

func isDefaultAsset(assetNum string) bool {
	return strings.TrimSpace(assetNum) == ""
}

// distinctAssets returns non-default asset numbers in first-seen order.
func distinctAssets(items []models.ChecklistItem) []string {
	seen := make(map[string]bool)
	var assets []string
	for _, item := range items {
		if isDefaultAsset(item.AssetNum) || seen[item.AssetNum] {
			continue
		}
		seen[item.AssetNum] = true
		assets = append(assets, item.AssetNum)
	}
	return assets
}

// BuildGroups partitions items into asset groups. expanded carries the known
// expansion flags by asset number; when none is known for any resulting group
// only the first group is expanded.
func BuildGroups(items []models.ChecklistItem, asset Asset, route *models.Route, expanded map[string]bool) []Group {
	if len(items) == 0 {
		return []Group{}
	}

	var groups []Group
	if IsMultiAsset(items, route) {
		groups = multiAssetGroups(items, asset)
	} else {
		groups = []Group{singleGroup(items, asset)}
	}

	known := false
	for i := range groups {
		if v, ok := expanded[groups[i].AssetNum]; ok {
			groups[i].IsExpanded = v
			known = true
		}
	}
	if !known {
		groups[0].IsExpanded = true
	}

	return groups
}

func singleGroup(items []models.ChecklistItem, asset Asset) Group {
	g := Group{
		AssetNum:   asset.Num,
		AssetName:  asset.Name,
		CheckItems: append([]models.ChecklistItem(nil), items...),
		Sequence:   minSequence(items),
	}
	if g.AssetNum == "" {
		g.AssetNum = items[0].AssetNum
	}
	if g.AssetName == "" {
		g.AssetName = items[0].AssetName
	}
	return g
}

func multiAssetGroups(items []models.ChecklistItem, asset Asset) []Group {
	order := distinctAssets(items)
	byAsset := make(map[string]*Group, len(order))
	for _, num := range order {
		byAsset[num] = &Group{AssetNum: num}
	}

	// Items without an asset number belong to the work order's own asset.
	fallback := asset.Num
	if _, ok := byAsset[fallback]; !ok {
		fallback = ""
	}

	var orphans []models.ChecklistItem
	for _, item := range items {
		num := item.AssetNum
		if isDefaultAsset(num) {
			if fallback == "" {
				orphans = append(orphans, item)
				continue
			}
			num = fallback
		}
		g := byAsset[num]
		g.CheckItems = append(g.CheckItems, item)
		if g.AssetName == "" {
			g.AssetName = item.AssetName
		}
	}

	if len(order) == 0 {
		// A route with no asset numbers at all still renders as one group.
		g := singleGroup(items, asset)
		sortItems(g.CheckItems)
		return []Group{g}
	}

	groups := make([]Group, 0, len(order))
	for _, num := range order {
		g := byAsset[num]
		if num == asset.Num && g.AssetName == "" {
			g.AssetName = asset.Name
		}
		groups = append(groups, *g)
	}

	for i := range groups {
		sortItems(groups[i].CheckItems)
		groups[i].Sequence = minSequence(groups[i].CheckItems)
	}
	// order is first-seen, so a stable sort keeps it as tie-break.
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Sequence < groups[j].Sequence
	})

	if len(orphans) > 0 {
		groups[0].CheckItems = append(groups[0].CheckItems, orphans...)
		sortItems(groups[0].CheckItems)
		groups[0].Sequence = minSequence(groups[0].CheckItems)
	}

	return groups
}

func sortItems(items []models.ChecklistItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Sequence < items[j].Sequence
	})
}

func minSequence(items []models.ChecklistItem) int {
	if len(items) == 0 {
		return 0
	}
	m := items[0].Sequence
	for _, item := range items[1:] {
		if item.Sequence < m {
			m = item.Sequence
		}
	}
	return m
}

type Completion string

const (
	Complete      Completion = "complete"
	Incomplete    Completion = "incomplete"
	NotApplicable Completion = "not_applicable"
)

// CompletionOf is complete when every item has a status set, and not
// applicable when there is nothing to check.
func CompletionOf(items []models.ChecklistItem) Completion {
	if len(items) == 0 {
		return NotApplicable
	}
	for _, item := range items {
		if !item.IsComplete() {
			return Incomplete
		}
	}
	return Complete
}
