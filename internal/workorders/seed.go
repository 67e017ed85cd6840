package workorders

import (
	"context"
	"fmt"
	"time"

	"eam/pkg/metadata"
	"eam/pkg/models"
)

func ptrTime(t time.Time) *time.Time {
	return &t
}

func checkItems(woID, assetNum, assetName string, titles ...string) []models.ChecklistItem {
	items := make([]models.ChecklistItem, 0, len(titles))
	for i, title := range titles {
		items = append(items, models.ChecklistItem{
			ID:          "CHK" + string(rune('A'+i)),
			Sequence:    (i + 1) * 10,
			Title:       title,
			Status:      models.CheckUnset,
			Media:       []models.Media{},
			AssetNum:    assetNum,
			AssetName:   assetName,
			WorkOrderID: woID,
		})
	}
	return items
}

// SeedWorkOrders is the demo dataset served when no database is configured.
func SeedWorkOrders() []models.WorkOrder {
	base := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

	pumpRoute := append(
		checkItems("PM240501", "P3PLUMP-P-LOADZNG03A", "Loading pump 03A",
			"Check pump casing for leakage",
			"Measure bearing temperature",
			"Verify coupling alignment"),
		checkItems("PM240501", "P3PLUMP-P-LOADZNG03B", "Loading pump 03B",
			"Check pump casing for leakage",
			"Measure bearing temperature")...,
	)
	pumpRoute = append(pumpRoute, models.ChecklistItem{
		ID:          "CHKZ",
		Sequence:    5,
		Title:       "Record ambient conditions",
		Status:      models.CheckUnset,
		Media:       []models.Media{},
		WorkOrderID: "PM240501",
	})

	return []models.WorkOrder{
		{
			ID:          "PM240501",
			Type:        metadata.TypePreventive,
			Status:      metadata.StatusInProgress,
			Description: "Quarterly inspection of loading zone pumps",
			AssetNum:    "P3PLUMP-P-LOADZNG03A",
			AssetName:   "Loading pump 03A",
			Location:    "OSS-P3-LOADING",
			Route:       &models.Route{ID: "RT-PUMP-Q", Name: "Loading pump quarterly route"},
			Staff:       models.Staff{Owner: "wang.l", Technicians: []string{"chen.m"}},
			Fields:      map[string]string{"remarks": ""},
			CheckItems:  pumpRoute,
			ReportItems: []models.ReportItem{
				{ID: "R1", Name: "Isolation and lock-out", Completed: true},
				{ID: "R2", Name: "Restore service", Completed: false},
			},
			Resources: models.Resources{
				Labor:     []models.ResourceLine{},
				Materials: []models.ResourceLine{{ID: "MAT-100", Kind: models.KindMaterial, Code: "GRS-EP2", Name: "EP2 bearing grease", Quantity: 1}},
				Tools:     []models.ResourceLine{},
			},
			CreatedAt: base,
			UpdatedAt: base,
		},
		{
			ID:          "PM240502",
			Type:        metadata.TypePreventive,
			Status:      metadata.StatusApproved,
			Description: "Annual yaw system inspection WTG-12",
			AssetNum:    "WTG12-YAW",
			AssetName:   "WTG-12 yaw system",
			Location:    "WTG-12",
			Staff:       models.Staff{Owner: "li.h", Lead: "zhao.k", Supervisor: "sun.y"},
			TimeWindow: models.TimeWindow{
				Start: ptrTime(base.Add(48 * time.Hour)),
				End:   ptrTime(base.Add(56 * time.Hour)),
			},
			CheckItems: checkItems("PM240502", "WTG12-YAW", "WTG-12 yaw system",
				"Inspect yaw brake pads",
				"Check yaw gear lubrication",
				"Torque check yaw bearing bolts"),
			Resources: models.Resources{
				Labor:     []models.ResourceLine{{ID: "LAB-200", Kind: models.KindLabor, Code: "TECH-L2", Name: "Wind technician", Quantity: 6}},
				Materials: []models.ResourceLine{},
				Tools:     []models.ResourceLine{{ID: "TL-300", Kind: models.KindTool, Code: "TQ-WRENCH", Name: "Hydraulic torque wrench", Quantity: 1}},
			},
			CreatedAt: base.Add(-24 * time.Hour),
			UpdatedAt: base.Add(-24 * time.Hour),
		},
		{
			ID:          "PM240503",
			Type:        metadata.TypePreventive,
			Status:      metadata.StatusCompleted,
			Description: "Transformer oil sampling OSS-T1",
			AssetNum:    "OSS-T1",
			AssetName:   "Main transformer T1",
			Location:    "OSS-MAIN",
			Staff:       models.Staff{Owner: "li.h", Lead: "zhao.k", Supervisor: "sun.y"},
			CheckItems:  []models.ChecklistItem{},
			Resources:   models.Resources{Labor: []models.ResourceLine{}, Materials: []models.ResourceLine{}, Tools: []models.ResourceLine{}},
			CreatedAt:   base.Add(-72 * time.Hour),
			UpdatedAt:   base.Add(-48 * time.Hour),
		},
		{
			ID:           "CM240510",
			Type:         metadata.TypeCorrective,
			Status:       metadata.CMStatusWaitingApproval,
			Description:  "Cooling fan noisy on converter cabinet",
			AssetNum:     "WTG07-CONV",
			AssetName:    "WTG-07 converter",
			Location:     "WTG-07",
			Reporter:     "chen.m",
			AbnormalType: string(metadata.AbnormalNoise),
			CheckItems:   []models.ChecklistItem{},
			Resources:    models.Resources{Labor: []models.ResourceLine{}, Materials: []models.ResourceLine{}, Tools: []models.ResourceLine{}},
			CreatedAt:    base.Add(-12 * time.Hour),
			UpdatedAt:    base.Add(-12 * time.Hour),
		},
	}
}

// SeedRepository stores orders when repo holds no work orders yet and
// reports how many were written.
func SeedRepository(ctx context.Context, repo Repository, orders []models.WorkOrder) (int, error) {
	existing, err := repo.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list work orders: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i, wo := range orders {
		if _, err := repo.Create(ctx, wo); err != nil {
			return i, fmt.Errorf("seed %s: %w", wo.ID, err)
		}
	}
	return len(orders), nil
}
