package repository

import (
	"context"

	"github.com/stitchworks/api/internal/model"
)

// BuiltinTemplates returns the stock route templates seeded at startup.
// Offsets are days relative to the order due date.
func BuiltinTemplates() []*model.RouteTemplate {
	return []*model.RouteTemplate{
		{
			Key:    "silkscreen-standard",
			Name:   "Silkscreen standard route",
			Method: model.MethodSilkscreen,
			Steps: []model.TemplateStep{
				{Name: "Cutting", Workcenter: "cutting", StartOffsetDays: -14, EndOffsetDays: -12},
				{Name: "Printing", Workcenter: "printing", DependsOn: []string{"Cutting"}, StartOffsetDays: -12, EndOffsetDays: -9},
				{Name: "Sewing", Workcenter: "sewing", DependsOn: []string{"Printing"}, StartOffsetDays: -9, EndOffsetDays: -5},
				{Name: "QC", Workcenter: "qc", DependsOn: []string{"Sewing"}, StartOffsetDays: -5, EndOffsetDays: -3},
				{Name: "Finishing", Workcenter: "finishing", DependsOn: []string{"QC"}, StartOffsetDays: -3, EndOffsetDays: -1},
			},
		},
		{
			Key:    "embroidery-standard",
			Name:   "Embroidery standard route",
			Method: model.MethodEmbroidery,
			Steps: []model.TemplateStep{
				{Name: "Cutting", Workcenter: "cutting", StartOffsetDays: -15, EndOffsetDays: -13},
				{Name: "Embroidery", Workcenter: "embroidery", DependsOn: []string{"Cutting"}, StartOffsetDays: -13, EndOffsetDays: -9},
				{Name: "Sewing", Workcenter: "sewing", DependsOn: []string{"Embroidery"}, StartOffsetDays: -9, EndOffsetDays: -5},
				{Name: "QC", Workcenter: "qc", DependsOn: []string{"Sewing"}, StartOffsetDays: -5, EndOffsetDays: -3},
				{Name: "Finishing", Workcenter: "finishing", DependsOn: []string{"QC"}, StartOffsetDays: -3, EndOffsetDays: -1},
			},
		},
		{
			// Transfers print while fabric is cut; sewing waits on both.
			Key:    "dtf-standard",
			Name:   "DTF standard route",
			Method: model.MethodDTF,
			Steps: []model.TemplateStep{
				{Name: "Cutting", Workcenter: "cutting", CanRunParallel: true, StartOffsetDays: -12, EndOffsetDays: -9},
				{Name: "Printing", Workcenter: "printing", CanRunParallel: true, StartOffsetDays: -12, EndOffsetDays: -9},
				{Name: "Sewing", Workcenter: "sewing", DependsOn: []string{"Cutting", "Printing"}, JoinType: model.JoinAND, StartOffsetDays: -9, EndOffsetDays: -5},
				{Name: "QC", Workcenter: "qc", DependsOn: []string{"Sewing"}, StartOffsetDays: -5, EndOffsetDays: -3},
				{Name: "Finishing", Workcenter: "finishing", DependsOn: []string{"QC"}, StartOffsetDays: -3, EndOffsetDays: -1},
			},
		},
		{
			Key:    "sublimation-standard",
			Name:   "Sublimation standard route",
			Method: model.MethodSublimation,
			Steps: []model.TemplateStep{
				{Name: "Printing", Workcenter: "printing", StartOffsetDays: -13, EndOffsetDays: -10},
				{Name: "Cutting", Workcenter: "cutting", DependsOn: []string{"Printing"}, StartOffsetDays: -10, EndOffsetDays: -8},
				{Name: "Sewing", Workcenter: "sewing", DependsOn: []string{"Cutting"}, StartOffsetDays: -8, EndOffsetDays: -4},
				{Name: "QC", Workcenter: "qc", DependsOn: []string{"Sewing"}, StartOffsetDays: -4, EndOffsetDays: -2},
				{Name: "Finishing", Workcenter: "finishing", DependsOn: []string{"QC"}, StartOffsetDays: -2, EndOffsetDays: -1},
			},
		},
	}
}

// SeedTemplates writes the builtin templates into the repository. Existing
// keys are overwritten so upgrades pick up template fixes.
func SeedTemplates(ctx context.Context, repo TemplateRepository) error {
	for _, tpl := range BuiltinTemplates() {
		if err := repo.Save(ctx, tpl); err != nil {
			return err
		}
	}
	return nil
}
