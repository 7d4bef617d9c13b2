package sde

import "testing"

func TestLoadIndustry(t *testing.T) {
	ind, err := LoadIndustry(writeSDE(t))
	if err != nil {
		t.Fatalf("LoadIndustry: %v", err)
	}

	bp, ok := ind.GetBlueprintForProduct(24698)
	if !ok {
		t.Fatal("no blueprint for Drake")
	}
	if bp.BlueprintTypeID != 24699 || bp.Activity != "manufacturing" || bp.Time != 30000 || bp.ProductQuantity != 1 {
		t.Errorf("Drake blueprint = %+v", bp)
	}

	reaction, ok := ind.GetBlueprintForProduct(16670)
	if !ok || reaction.Activity != "reaction" || reaction.ProductQuantity != 200 {
		t.Errorf("reaction blueprint = %+v, %v", reaction, ok)
	}

	if _, ok := ind.GetBlueprintForProduct(34); ok {
		t.Error("Tritanium should have no blueprint")
	}
}

func TestRefineYields(t *testing.T) {
	ind, err := LoadIndustry(writeSDE(t))
	if err != nil {
		t.Fatal(err)
	}
	if got := ind.RefineYields(62516, nil); got[34] != 4 || len(got) != 1 {
		t.Errorf("Compressed Veldspar yields = %v, want {34:4}", got)
	}

	all := ind.RefineYields(24698, nil)
	if all[34] != 100000 || all[35] != 40000 {
		t.Errorf("Drake yields = %v (typeID field variant)", all)
	}
	only := ind.RefineYields(24698, map[int32]bool{35: true})
	if len(only) != 1 || only[35] != 40000 {
		t.Errorf("restricted yields = %v, want {35:40000}", only)
	}
	if got := ind.RefineYields(1, nil); len(got) != 0 {
		t.Errorf("unknown type yields = %v", got)
	}
}

func TestAddBlueprintIndexesProduct(t *testing.T) {
	ind := NewIndustryData()
	ind.AddBlueprint(&Blueprint{BlueprintTypeID: 11, ProductTypeID: 22, ProductQuantity: 1})
	if bp, ok := ind.GetBlueprintForProduct(22); !ok || bp.BlueprintTypeID != 11 {
		t.Errorf("GetBlueprintForProduct(22) = %+v, %v", bp, ok)
	}
}
