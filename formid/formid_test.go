package formid

import "testing"

func TestNewResolvesFromMasters(t *testing.T) {
	masters := []string{"Skyrim.esm", "Update.esm"}

	f := New("MyMod.esp", masters, 0x01000CEC)
	if f.ObjectIndex != 0x000CEC {
		t.Errorf("ObjectIndex = %#x, want %#x", f.ObjectIndex, 0x000CEC)
	}
	if f.PluginName != "Update.esm" {
		t.Errorf("PluginName = %q, want %q", f.PluginName, "Update.esm")
	}
}

func TestNewFallsBackToParentPlugin(t *testing.T) {
	masters := []string{"Skyrim.esm"}

	// Mod index 5 is out of range for a one-entry masters list, so the
	// record belongs to the parent plugin itself.
	f := New("MyMod.esp", masters, 0x05000001)
	if f.PluginName != "MyMod.esp" {
		t.Errorf("PluginName = %q, want %q", f.PluginName, "MyMod.esp")
	}
	if f.ObjectIndex != 1 {
		t.Errorf("ObjectIndex = %#x, want 1", f.ObjectIndex)
	}
}

func TestEqualIsCaseInsensitive(t *testing.T) {
	a := FormID{ObjectIndex: 7, PluginName: "Skyrim.esm"}
	b := FormID{ObjectIndex: 7, PluginName: "SKYRIM.ESM"}

	if !a.Equal(b) {
		t.Errorf("%+v.Equal(%+v) = false, want true", a, b)
	}

	c := FormID{ObjectIndex: 7, PluginName: "Update.esm"}
	if a.Equal(c) {
		t.Errorf("%+v.Equal(%+v) = true, want false", a, c)
	}
}

func TestCaseFoldKeyConsistentWithEqual(t *testing.T) {
	a := FormID{ObjectIndex: 42, PluginName: "Dawnguard.esm"}
	b := FormID{ObjectIndex: 42, PluginName: "dawnguard.ESM"}

	if !a.Equal(b) {
		t.Fatalf("expected a.Equal(b)")
	}
	if a.CaseFoldKey() != b.CaseFoldKey() {
		t.Errorf("CaseFoldKey() differs for case-insensitively equal form ids: %q vs %q",
			a.CaseFoldKey(), b.CaseFoldKey())
	}
}

func TestLessOrdersByObjectIndexThenName(t *testing.T) {
	a := FormID{ObjectIndex: 1, PluginName: "Zeta.esp"}
	b := FormID{ObjectIndex: 2, PluginName: "Alpha.esp"}
	if !a.Less(b) {
		t.Errorf("expected lower ObjectIndex to sort first regardless of name")
	}

	c := FormID{ObjectIndex: 5, PluginName: "Alpha.esp"}
	d := FormID{ObjectIndex: 5, PluginName: "Zeta.esp"}
	if !c.Less(d) {
		t.Errorf("expected same ObjectIndex to fall back to name ordering")
	}
}

func TestString(t *testing.T) {
	f := FormID{ObjectIndex: 0xCEC, PluginName: "Skyrim.esm"}
	if got, want := f.String(), "Skyrim.esm:0xCEC"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
