package refdata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"ExpenseCertify/internal/model"
)

// ManifestFile, when present in the reference directory, overrides or extends
// the built-in list entries.
const ManifestFile = "catalog.yaml"

// Catalog keys used by the rule table.
const (
	KeyFCCrop          = "FC_Crop"
	KeyVCCrop          = "VC_Crop"
	KeyFruitCrop       = "Fruit_Crop"
	KeyCommonCrop      = "Common_Crop"
	KeyRootStockCrop   = "RootStock_Crop"
	KeyFCBU            = "FC_BU"
	KeyVCBU            = "VC_BU"
	KeyRSBU            = "RS_BU"
	KeySaleFCZone      = "SaleFC_Zone"
	KeySaleVCZone      = "SaleVC_Zone"
	KeySaleRSZone      = "SaleRS_Zone"
	KeySBFCRegion      = "SBFC_Region"
	KeySBVCRegion      = "SBVC_Region"
	KeySBRSRegion      = "SBRS_Region"
	KeyProdFCZone      = "ProdFC_Zone"
	KeyProdVCZone      = "ProdVC_Zone"
	KeySalesActivity   = "Sales_Activity"
	KeyMarketingAct    = "Marketing_Activity"
	KeyBreedingAct     = "Breeding_Activity"
	KeyTrialingAct     = "Trialing_Activity"
	KeyBreedingSuppAct = "BreedingSupport_Activity"
	KeyProductionAct   = "Production_Activity"
	KeyRegionExcluded  = "Region_Excluded_Accounts"
	KeyZoneExcluded    = "Zone_Excluded_Accounts"
)

// Entry names one reference list: the file it lives in and the column to read.
type Entry struct {
	Key    string `yaml:"key"`
	File   string `yaml:"file"`
	Column string `yaml:"column"`
}

// Manifest describes every file in the reference directory.
type Manifest struct {
	LedgerFile   string  `yaml:"ledger_file"`
	ImmunityFile string  `yaml:"immunity_file"`
	Lists        []Entry `yaml:"lists"`
}

func list(key, column string) Entry {
	return Entry{Key: key, File: key + ".xlsx", Column: column}
}

// DefaultManifest is the layout shipped with the ERP reference exports.
func DefaultManifest() Manifest {
	return Manifest{
		LedgerFile:   "Ledger_Mapping.xlsx",
		ImmunityFile: "Immunity.xlsx",
		Lists: []Entry{
			list(KeyFCCrop, model.FieldCrop),
			list(KeyVCCrop, model.FieldCrop),
			list(KeyFruitCrop, model.FieldCrop),
			list(KeyCommonCrop, model.FieldCrop),
			list(KeyRootStockCrop, model.FieldCrop),
			list(KeyFCBU, model.FieldBusinessUnit),
			list(KeyVCBU, model.FieldBusinessUnit),
			list(KeyRSBU, model.FieldBusinessUnit),
			list(KeySaleFCZone, model.FieldZone),
			list(KeySaleVCZone, model.FieldZone),
			list(KeySaleRSZone, model.FieldZone),
			list(KeySBFCRegion, model.FieldRegion),
			list(KeySBVCRegion, model.FieldRegion),
			list(KeySBRSRegion, model.FieldRegion),
			list(KeyProdFCZone, model.FieldZone),
			list(KeyProdVCZone, model.FieldZone),
			list(KeySalesActivity, model.FieldActivity),
			list(KeyMarketingAct, model.FieldActivity),
			list(KeyBreedingAct, model.FieldActivity),
			list(KeyTrialingAct, model.FieldActivity),
			list(KeyBreedingSuppAct, model.FieldActivity),
			list(KeyProductionAct, model.FieldActivity),
			list(KeyRegionExcluded, model.FieldAccount),
			list(KeyZoneExcluded, model.FieldAccount),
		},
	}
}

// LoadManifest returns the default manifest merged with catalog.yaml from dir.
// Entries in the file replace built-in entries with the same key.
func LoadManifest(dir string) (Manifest, error) {
	m := DefaultManifest()
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("read %s: %w", ManifestFile, err)
	}
	var override Manifest
	if err := yaml.Unmarshal(data, &override); err != nil {
		return m, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	return m.merge(override), nil
}

func (m Manifest) merge(o Manifest) Manifest {
	if o.LedgerFile != "" {
		m.LedgerFile = o.LedgerFile
	}
	if o.ImmunityFile != "" {
		m.ImmunityFile = o.ImmunityFile
	}
	byKey := make(map[string]Entry, len(m.Lists)+len(o.Lists))
	for _, e := range m.Lists {
		byKey[e.Key] = e
	}
	for _, e := range o.Lists {
		if e.Key == "" {
			continue
		}
		base := byKey[e.Key]
		if e.File == "" {
			e.File = base.File
		}
		if e.Column == "" {
			e.Column = base.Column
		}
		byKey[e.Key] = e
	}
	m.Lists = make([]Entry, 0, len(byKey))
	for _, e := range byKey {
		m.Lists = append(m.Lists, e)
	}
	sort.Slice(m.Lists, func(i, j int) bool { return m.Lists[i].Key < m.Lists[j].Key })
	return m
}
