package validation

import (
	"ExpenseCertify/internal/refdata"
)

// Verticals recognised by the crop check.
const (
	VerticalFC        = "FC-field crop"
	VerticalVC        = "VC-Veg Crop"
	VerticalFruit     = "Fruit Crop"
	VerticalCommon    = "Common"
	VerticalRootStock = "Root Stock"
)

// CropLists maps each recognised vertical to the catalog key of its crops.
var CropLists = map[string]string{
	VerticalFC:        refdata.KeyFCCrop,
	VerticalVC:        refdata.KeyVCCrop,
	VerticalFruit:     refdata.KeyFruitCrop,
	VerticalCommon:    refdata.KeyCommonCrop,
	VerticalRootStock: refdata.KeyRootStockCrop,
}

// Function names expected per department.
const (
	FunctionSupport    = "Support Functions"
	FunctionManagement = "Management"
	FunctionSupply     = "Supply Chain"
	FunctionResearch   = "Research & Development"
)

// SubDepartmentPolicy says what a department accepts in Sub Department.Name.
type SubDepartmentPolicy int

const (
	// SubDepartmentAny accepts any value, including blank.
	SubDepartmentAny SubDepartmentPolicy = iota
	// SubDepartmentBlank requires the field to be blank.
	SubDepartmentBlank
	// SubDepartmentListed requires one of the department's SubDepartments.
	SubDepartmentListed
)

// ActivityPolicy says how a department clause checks Activity.Name.
type ActivityPolicy int

const (
	// ActivityUnchecked leaves activity to the default check, if any.
	ActivityUnchecked ActivityPolicy = iota
	// ActivityRequired rejects blank and ZZ activities and values outside the
	// activity list when the list is loaded.
	ActivityRequired
	// ActivityListed only rejects non-blank values outside a loaded list.
	ActivityListed
)

// VerticalRule constrains zone, region and business unit for one vertical.
// Empty keys skip that dimension. ExclusionAware lets the account-code
// exclusion lists permit a blank region or zone.
type VerticalRule struct {
	Vertical       string
	Zone           string
	Region         string
	BusinessUnit   string
	ExclusionAware bool
}

// SubDepartmentRule carries the constraints specific to one sub-department.
// A non-empty Activity overrides the department's list.
type SubDepartmentRule struct {
	Name      string
	Activity  string
	Verticals []VerticalRule
}

// DepartmentRule is one entry of the per-department dispatch table.
type DepartmentRule struct {
	Name           string
	Function       string
	Verticals      []string
	SubDepartment  SubDepartmentPolicy
	SubDepartments []SubDepartmentRule
	Activity       ActivityPolicy
	ActivityList   string
}

func (d *DepartmentRule) subDepartment(name string) (*SubDepartmentRule, bool) {
	for i := range d.SubDepartments {
		if d.SubDepartments[i].Name == name {
			return &d.SubDepartments[i], true
		}
	}
	return nil, false
}

func (d *DepartmentRule) allowsVertical(v string) bool {
	for _, allowed := range d.Verticals {
		if allowed == v {
			return true
		}
	}
	return false
}

// NoCropCheck departments skip the vertical and crop check.
var NoCropCheck = map[string]bool{
	"Finance & Account":         true,
	"Human Resource":            true,
	"Administration":            true,
	"Information Technology":    true,
	"Legal":                     true,
	"Accounts Receivable & MIS": true,
	"Management":                true,
}

// NoActivityCheck departments skip the default activity check.
var NoActivityCheck = union(NoCropCheck, map[string]bool{
	"Production":  true,
	"Processing":  true,
	"Parent Seed": true,
})

// OwnActivityCheck departments check activity in their own clause instead of
// the default check.
var OwnActivityCheck = map[string]bool{
	"Breeding":         true,
	"Trialing & PD":    true,
	"Sales":            true,
	"Marketing":        true,
	"Breeding Support": true,
}

func union(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func support(name string) DepartmentRule {
	return DepartmentRule{
		Name:      name,
		Function:  FunctionSupport,
		Verticals: []string{VerticalCommon},
	}
}

func blankSub(rule DepartmentRule) DepartmentRule {
	rule.SubDepartment = SubDepartmentBlank
	return rule
}

// salesBrand mirrors the brand-sales layout for each vertical it serves.
var salesBrand = SubDepartmentRule{
	Name: "Sales Brand",
	Verticals: []VerticalRule{
		{Vertical: VerticalFC, Zone: refdata.KeySaleFCZone, Region: refdata.KeySBFCRegion, BusinessUnit: refdata.KeyFCBU, ExclusionAware: true},
		{Vertical: VerticalVC, Zone: refdata.KeySaleVCZone, Region: refdata.KeySBVCRegion, BusinessUnit: refdata.KeyVCBU, ExclusionAware: true},
		{Vertical: VerticalRootStock, Zone: refdata.KeySaleRSZone, Region: refdata.KeySBRSRegion, BusinessUnit: refdata.KeyRSBU, ExclusionAware: true},
	},
}

// DefaultDepartments is the compiled-in rule table.
func DefaultDepartments() []DepartmentRule {
	return []DepartmentRule{
		support("Finance & Account"),
		support("Human Resource"),
		support("Information Technology"),
		support("Accounts Receivable & MIS"),
		blankSub(support("Administration")),
		blankSub(support("Legal")),
		blankSub(DepartmentRule{
			Name:      "Management",
			Function:  FunctionManagement,
			Verticals: []string{VerticalCommon},
		}),
		{
			Name:          "Sales",
			SubDepartment: SubDepartmentListed,
			SubDepartments: []SubDepartmentRule{
				salesBrand,
				{Name: "Sales Institutional"},
				{Name: "Sales Export"},
			},
			Activity:     ActivityRequired,
			ActivityList: refdata.KeySalesActivity,
		},
		{
			Name:         "Marketing",
			Activity:     ActivityRequired,
			ActivityList: refdata.KeyMarketingAct,
		},
		{
			Name:     "Production",
			Function: FunctionSupply,
			SubDepartments: []SubDepartmentRule{
				{
					Name: "Commercial Seed Production",
					Verticals: []VerticalRule{
						{Vertical: VerticalFC, Zone: refdata.KeyProdFCZone, ExclusionAware: true},
						{Vertical: VerticalVC, Zone: refdata.KeyProdVCZone, ExclusionAware: true},
					},
				},
			},
			Activity:     ActivityListed,
			ActivityList: refdata.KeyProductionAct,
		},
		{Name: "Processing", Function: FunctionSupply},
		{Name: "Parent Seed", Function: FunctionSupply},
		{
			Name:         "Breeding",
			Function:     FunctionResearch,
			Activity:     ActivityRequired,
			ActivityList: refdata.KeyBreedingAct,
		},
		{
			Name:         "Trialing & PD",
			Function:     FunctionResearch,
			Activity:     ActivityRequired,
			ActivityList: refdata.KeyTrialingAct,
		},
		{
			Name:         "Breeding Support",
			Function:     FunctionResearch,
			Activity:     ActivityRequired,
			ActivityList: refdata.KeyBreedingSuppAct,
		},
	}
}
