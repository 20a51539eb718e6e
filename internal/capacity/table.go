package capacity

import "github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"

// machineTable is the locked capability table. Limits come from the
// manufacturers' rated capacity per stroke.
var machineTable = []model.MachineSpec{
	{
		Model: "SHEAR-CM60",
		Kind:  model.KindCutter,
		MaxBars: map[model.BarSize]int{
			model.Bar10M: 12,
			model.Bar15M: 8,
			model.Bar20M: 6,
			model.Bar25M: 4,
			model.Bar30M: 3,
			model.Bar35M: 2,
			model.Bar45M: 1,
			model.Bar55M: 1,
		},
	},
	{
		Model: "SHEAR-CM40",
		Kind:  model.KindCutter,
		MaxBars: map[model.BarSize]int{
			model.Bar10M: 8,
			model.Bar15M: 6,
			model.Bar20M: 4,
			model.Bar25M: 3,
			model.Bar30M: 2,
			model.Bar35M: 1,
		},
		Blocked: map[model.BarSize]bool{
			model.Bar45M: true,
			model.Bar55M: true,
		},
	},
	{
		Model: "BENDER-BP40",
		Kind:  model.KindBender,
		MaxBars: map[model.BarSize]int{
			model.Bar10M: 6,
			model.Bar15M: 4,
			model.Bar20M: 3,
			model.Bar25M: 2,
			model.Bar30M: 1,
		},
		Blocked: map[model.BarSize]bool{
			model.Bar35M: true,
			model.Bar45M: true,
			model.Bar55M: true,
		},
	},
	{
		Model: "BENDER-BP55",
		Kind:  model.KindBender,
		MaxBars: map[model.BarSize]int{
			model.Bar10M: 8,
			model.Bar15M: 6,
			model.Bar20M: 4,
			model.Bar25M: 3,
			model.Bar30M: 2,
			model.Bar35M: 1,
			model.Bar45M: 1,
			model.Bar55M: 1,
		},
	},
	{
		Model: "SPIRAL-SP20",
		Kind:  model.KindBender,
		MaxBars: map[model.BarSize]int{
			model.Bar10M: 2,
			model.Bar15M: 1,
		},
		Blocked: map[model.BarSize]bool{
			model.Bar20M: true,
			model.Bar25M: true,
			model.Bar30M: true,
			model.Bar35M: true,
			model.Bar45M: true,
			model.Bar55M: true,
		},
	},
}
