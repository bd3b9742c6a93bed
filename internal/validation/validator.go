package validation

import (
	"fmt"
	"sort"

	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/refdata"
	"ExpenseCertify/internal/tabular"
)

// Reason texts that do not depend on the row.
const (
	ReasonLedger          = "Incorrect Ledger/Sub-Ledger Combination"
	ReasonLocation        = "Incorrect Location Name"
	ReasonActivity        = "Incorrect Activity Name"
	ReasonVerticalBlank   = "FC-Vertical Name cannot be blank"
	ReasonVertical        = "Incorrect FC-Vertical Name"
	ReasonCropBlank       = "Crop Name cannot be blank"
	ReasonCropZZ          = "Incorrect Crop Name starting with ZZ"
	ReasonRegionExcluded  = "Region Name should be blank for this Account Code"
	ReasonZoneExcluded    = "Zone Name should be blank for this Account Code"
	reasonCropForVertical = "Incorrect Crop Name for %s Vertical"
	reasonSubIncorrect    = "Incorrect Sub Department Name for %s"
	reasonSubMustBeBlank  = "Sub Department Name should be blank for %s"
	reasonSubRequired     = "Sub Department Name cannot be blank for %s"
	reasonFunction        = "Incorrect Function Name for %s"
	reasonDeptActivity    = "Incorrect Activity Name for %s"
	reasonDimensionBlank  = "Need to update %s Name can not left Blank"
	reasonDimension       = "Incorrect %s Name for %s Vertical"
)

// Verdict is the outcome of validating one row.
type Verdict struct {
	Reasons  []string
	Severity int
}

// OK reports whether the row passed every check.
func (v Verdict) OK() bool { return len(v.Reasons) == 0 }

// Validator applies the certification rules to single rows. It only reads its
// catalogs, so one instance serves every worker.
type Validator struct {
	catalog     *refdata.Catalog
	ledger      *refdata.LedgerCatalog
	departments map[string]*DepartmentRule
}

// New builds a validator over b with the compiled-in rule table.
func New(b *refdata.Bundle) *Validator {
	return NewWithRules(b, DefaultDepartments())
}

// NewWithRules builds a validator with a caller-supplied rule table.
func NewWithRules(b *refdata.Bundle, rules []DepartmentRule) *Validator {
	v := &Validator{departments: make(map[string]*DepartmentRule, len(rules))}
	if b != nil {
		v.catalog = b.Catalog
		v.ledger = b.Ledger
	}
	for i := range rules {
		r := rules[i]
		v.departments[r.Name] = &r
	}
	return v
}

// Validate returns the sorted, de-duplicated reasons row violates under
// department, with severity 2 per reason.
func (v *Validator) Validate(department string, row tabular.Row) Verdict {
	reasons := reasonSet{}

	v.checkLedger(row, reasons)
	checkLocation(row, reasons)
	if !NoActivityCheck[department] && !OwnActivityCheck[department] {
		checkDefaultActivity(row, reasons)
	}
	if !NoCropCheck[department] {
		v.checkVerticalAndCrop(row, reasons)
	}
	v.checkExclusions(row, reasons)
	if rule, ok := v.departments[department]; ok {
		v.checkDepartment(rule, row, reasons)
	}

	return verdict(reasons)
}

func verdict(reasons reasonSet) Verdict {
	out := make([]string, 0, len(reasons))
	for r := range reasons {
		out = append(out, r)
	}
	sort.Strings(out)
	return Verdict{Reasons: out, Severity: 2 * len(out)}
}

func (v *Validator) checkLedger(row tabular.Row, reasons reasonSet) {
	if v.ledger.Len() == 0 {
		return
	}
	if Value(row, model.FieldAccount2) == "" && Value(row, model.FieldSubLedger) == "" {
		return
	}
	if !v.ledger.Contains(Raw(row, model.FieldAccount2), Raw(row, model.FieldSubLedger)) {
		reasons.add(ReasonLedger)
	}
}

func checkLocation(row tabular.Row, reasons reasonSet) {
	loc := Value(row, model.FieldLocation)
	if loc == "" || startsZZ(loc) {
		reasons.add(ReasonLocation)
	}
}

func checkDefaultActivity(row tabular.Row, reasons reasonSet) {
	act := Value(row, model.FieldActivity)
	if act == "" || startsZZ(act) {
		reasons.add(ReasonActivity)
	}
}

func (v *Validator) checkVerticalAndCrop(row tabular.Row, reasons reasonSet) {
	vertical := Value(row, model.FieldVertical)
	crop := Value(row, model.FieldCrop)

	listKey, known := CropLists[vertical]
	switch {
	case vertical == "":
		reasons.add(ReasonVerticalBlank)
	case !known:
		reasons.add(ReasonVertical)
	}

	switch {
	case crop == "":
		reasons.add(ReasonCropBlank)
	case startsZZ(crop):
		reasons.add(ReasonCropZZ)
	case known && v.catalog.Loaded(listKey) && !v.catalog.Has(listKey, crop):
		reasons.add(fmt.Sprintf(reasonCropForVertical, vertical))
	}
}

func (v *Validator) checkExclusions(row tabular.Row, reasons reasonSet) {
	account := Raw(row, model.FieldAccount)
	if account == "" {
		return
	}
	if v.catalog.Has(refdata.KeyRegionExcluded, account) && Value(row, model.FieldRegion) != "" {
		reasons.add(ReasonRegionExcluded)
	}
	if v.catalog.Has(refdata.KeyZoneExcluded, account) && Value(row, model.FieldZone) != "" {
		reasons.add(ReasonZoneExcluded)
	}
}

func (v *Validator) checkDepartment(rule *DepartmentRule, row tabular.Row, reasons reasonSet) {
	dept := rule.Name
	sub := Value(row, model.FieldSubDepartment)
	subRule, listed := rule.subDepartment(sub)

	switch rule.SubDepartment {
	case SubDepartmentBlank:
		if sub != "" {
			reasons.add(fmt.Sprintf(reasonSubMustBeBlank, dept))
		}
	case SubDepartmentListed:
		if sub == "" {
			reasons.add(fmt.Sprintf(reasonSubRequired, dept))
		} else if !listed {
			reasons.add(fmt.Sprintf(reasonSubIncorrect, dept))
		}
	}

	if rule.Function != "" && Value(row, model.FieldFunction) != rule.Function {
		reasons.add(fmt.Sprintf(reasonFunction, dept))
	}

	vertical := Value(row, model.FieldVertical)
	if len(rule.Verticals) > 0 {
		if vertical == "" {
			reasons.add(ReasonVerticalBlank)
		} else if !rule.allowsVertical(vertical) {
			reasons.add(ReasonVertical)
		}
	}

	v.checkDepartmentActivity(rule, subRule, row, reasons)

	if subRule == nil || vertical == "" {
		return
	}
	for _, vr := range subRule.Verticals {
		if vr.Vertical == vertical {
			v.checkVerticalRule(vr, row, reasons)
		}
	}
}

func (v *Validator) checkDepartmentActivity(rule *DepartmentRule, sub *SubDepartmentRule, row tabular.Row, reasons reasonSet) {
	if rule.Activity == ActivityUnchecked {
		return
	}
	key := rule.ActivityList
	if sub != nil && sub.Activity != "" {
		key = sub.Activity
	}
	act := Value(row, model.FieldActivity)
	reason := fmt.Sprintf(reasonDeptActivity, rule.Name)

	if act == "" {
		if rule.Activity == ActivityRequired {
			reasons.add(reason)
		}
		return
	}
	if startsZZ(act) || (v.catalog.Loaded(key) && !v.catalog.Has(key, act)) {
		reasons.add(reason)
	}
}

func (v *Validator) checkVerticalRule(vr VerticalRule, row tabular.Row, reasons reasonSet) {
	account := Raw(row, model.FieldAccount)
	zoneExcused := vr.ExclusionAware && account != "" && v.catalog.Has(refdata.KeyZoneExcluded, account)
	regionExcused := vr.ExclusionAware && account != "" && v.catalog.Has(refdata.KeyRegionExcluded, account)

	v.checkDimension(row, model.FieldZone, "Zone", vr.Zone, vr.Vertical, zoneExcused, reasons)
	v.checkDimension(row, model.FieldRegion, "Region", vr.Region, vr.Vertical, regionExcused, reasons)
	v.checkDimension(row, model.FieldBusinessUnit, "Business Unit", vr.BusinessUnit, vr.Vertical, false, reasons)
}

// checkDimension applies the blank-else-invalid check. An exclusion only
// excuses the blank case.
func (v *Validator) checkDimension(row tabular.Row, field, label, key, vertical string, excused bool, reasons reasonSet) {
	if key == "" {
		return
	}
	val := Value(row, field)
	if val == "" {
		if !excused {
			reasons.add(fmt.Sprintf(reasonDimensionBlank, label))
		}
		return
	}
	if v.catalog.Loaded(key) && !v.catalog.Has(key, val) {
		reasons.add(fmt.Sprintf(reasonDimension, label, vertical))
	}
}
