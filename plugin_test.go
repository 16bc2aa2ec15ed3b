package espm

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func u16le(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func subrecordBytes(typ string, payload []byte) []byte {
	var b []byte
	b = append(b, []byte(typ)...)
	b = append(b, u16le(uint16(len(payload)))...)
	b = append(b, payload...)
	return b
}

func hedrPayload(recordAndGroupCount uint32, version float32) []byte {
	var b []byte
	b = append(b, u32le(recordAndGroupCount)...)
	b = append(b, u32le(math.Float32bits(version))...)
	b = append(b, u32le(0)...) // next object id, unused by this implementation
	return b
}

// buildHeaderRecord builds a TES4-dialect top header record with the
// given flags, recordAndGroupCount and masters.
func buildHeaderRecord(flags uint32, recordAndGroupCount uint32, masters []string, description string) []byte {
	var sub []byte
	sub = append(sub, subrecordBytes("HEDR", hedrPayload(recordAndGroupCount, 1.7))...)
	for _, m := range masters {
		sub = append(sub, subrecordBytes("MAST", append([]byte(m), 0))...)
	}
	if description != "" {
		sub = append(sub, subrecordBytes("SNAM", append([]byte(description), 0))...)
	}

	var rec []byte
	rec = append(rec, []byte("TES4")...)
	rec = append(rec, u32le(uint32(len(sub)))...)
	rec = append(rec, u32le(flags)...)
	rec = append(rec, u32le(0)...) // form id
	rec = append(rec, u32le(0)...) // skip
	rec = append(rec, u32le(0)...) // skip
	rec = append(rec, sub...)
	return rec
}

// buildGroupRecord builds a single record living inside a GRUP group.
func buildGroupRecord(recordType string, flags, formID uint32) []byte {
	var rec []byte
	rec = append(rec, []byte(recordType)...)
	rec = append(rec, u32le(0)...) // no subrecords
	rec = append(rec, u32le(flags)...)
	rec = append(rec, u32le(formID)...)
	rec = append(rec, u32le(0)...) // skip
	rec = append(rec, u32le(0)...) // skip
	return rec
}

func buildGroup(label string, records ...[]byte) []byte {
	var body []byte
	for _, r := range records {
		body = append(body, r...)
	}

	var group []byte
	group = append(group, []byte("GRUP")...)
	group = append(group, u32le(uint32(groupHeaderLength+len(body)))...)
	group = append(group, []byte(label)...)
	group = append(group, u32le(0)...) // group type
	group = append(group, u32le(0)...) // stamp
	group = append(group, u32le(0)...) // unknown
	if len(group) != groupHeaderLength {
		panic("buildGroup: header length mismatch")
	}
	group = append(group, body...)
	return group
}

func writeTempPlugin(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestParseFileHeaderOnly(t *testing.T) {
	header := buildHeaderRecord(0, 2, []string{"Skyrim.esm"}, "a test plugin")
	path := writeTempPlugin(t, "Test.esp", header)

	p := New(SkyrimSE, path)
	if err := p.ParseFile(true); err != nil {
		t.Fatalf("ParseFile(true) returned error: %v", err)
	}

	if got := p.Masters(); len(got) != 1 || got[0] != "Skyrim.esm" {
		t.Errorf("Masters() = %v, want [Skyrim.esm]", got)
	}
	if desc, ok := p.Description(); !ok || desc != "a test plugin" {
		t.Errorf("Description() = (%q, %v), want (%q, true)", desc, ok, "a test plugin")
	}
	if version, ok := p.HeaderVersion(); !ok || version != 1.7 {
		t.Errorf("HeaderVersion() = (%v, %v), want (1.7, true)", version, ok)
	}
	if count, ok := p.RecordAndGroupCount(); !ok || count != 2 {
		t.Errorf("RecordAndGroupCount() = (%d, %v), want (2, true)", count, ok)
	}
	if name, err := p.Filename(); err != nil || name != "Test.esp" {
		t.Errorf("Filename() = (%q, %v), want (Test.esp, nil)", name, err)
	}
}

func TestParseFileFullWithOverrides(t *testing.T) {
	header := buildHeaderRecord(0, 3, []string{"Skyrim.esm"}, "")

	// An override of a master's record (mod index 0, not flagged new).
	override := buildGroupRecord("ABCD", 0, 0x00000005)
	// A record the plugin defines itself (flagged new).
	fresh := buildGroupRecord("ABCD", isNewRecordFlag, 0x00000010)

	group := buildGroup("TEST", override, fresh)

	var content []byte
	content = append(content, header...)
	content = append(content, group...)

	path := writeTempPlugin(t, "Override.esp", content)

	p := New(SkyrimSE, path)
	if err := p.ParseFile(false); err != nil {
		t.Fatalf("ParseFile(false) returned error: %v", err)
	}

	if got := p.CountOverrideRecords(); got != 1 {
		t.Errorf("CountOverrideRecords() = %d, want 1", got)
	}
	if len(p.FormIDs()) != 2 {
		t.Errorf("len(FormIDs()) = %d, want 2", len(p.FormIDs()))
	}
}

func TestParseFileMorrowindFlatBody(t *testing.T) {
	var sub []byte
	sub = append(sub, subrecordMorrowind("HEDR", hedrPayload(1, 1.2))...)

	var header []byte
	header = append(header, []byte("TES3")...)
	header = append(header, u32le(uint32(len(sub)))...)
	header = append(header, u32le(0)...) // skip
	header = append(header, u32le(0)...) // flags
	header = append(header, sub...)

	record := buildMorrowindRecord("ACTI")

	var content []byte
	content = append(content, header...)
	content = append(content, record...)

	path := writeTempPlugin(t, "Morrowind.esm", content)

	p := New(Morrowind, path)
	if err := p.ParseFile(false); err != nil {
		t.Fatalf("ParseFile(false) returned error: %v", err)
	}
	if len(p.FormIDs()) != 1 {
		t.Errorf("len(FormIDs()) = %d, want 1", len(p.FormIDs()))
	}
	if !p.IsMasterFile() {
		t.Errorf("IsMasterFile() = false, want true for a .esm path")
	}
}

func subrecordMorrowind(typ string, payload []byte) []byte {
	var b []byte
	b = append(b, []byte(typ)...)
	b = append(b, u32le(uint32(len(payload)))...)
	b = append(b, payload...)
	return b
}

func buildMorrowindRecord(recordType string) []byte {
	var rec []byte
	rec = append(rec, []byte(recordType)...)
	rec = append(rec, u32le(0)...) // no subrecords
	rec = append(rec, u32le(0)...) // skip
	rec = append(rec, u32le(0)...) // flags
	return rec
}

func TestIsLightMasterAndIsMaster(t *testing.T) {
	header := buildHeaderRecord(0, 0, nil, "")
	path := writeTempPlugin(t, "Light.esl", header)

	p := New(SkyrimSE, path)
	if err := p.ParseFile(true); err != nil {
		t.Fatalf("ParseFile returned error: %v", err)
	}
	if !p.IsLightMasterFile() {
		t.Errorf("IsLightMasterFile() = false, want true for a .esl path")
	}
	if !p.IsMasterFile() {
		t.Errorf("IsMasterFile() = false, want true (light masters are always masters)")
	}
}

func TestIsEmpty(t *testing.T) {
	header := buildHeaderRecord(0, 0, nil, "")
	path := writeTempPlugin(t, "Empty.esp", header)

	p := New(SkyrimSE, path)
	if err := p.ParseFile(true); err != nil {
		t.Fatalf("ParseFile returned error: %v", err)
	}
	if !p.IsEmpty() {
		t.Errorf("IsEmpty() = false, want true for a zero record count")
	}
}

func TestOverlapsWith(t *testing.T) {
	header := buildHeaderRecord(0, 1, []string{"Skyrim.esm"}, "")
	shared := buildGroupRecord("ABCD", 0, 0x00000005)
	group := buildGroup("TEST", shared)

	var contentA []byte
	contentA = append(contentA, header...)
	contentA = append(contentA, group...)
	pathA := writeTempPlugin(t, "A.esp", contentA)

	var contentB []byte
	contentB = append(contentB, header...)
	contentB = append(contentB, group...)
	pathB := writeTempPlugin(t, "B.esp", contentB)

	a := New(SkyrimSE, pathA)
	if err := a.ParseFile(false); err != nil {
		t.Fatalf("ParseFile(A) returned error: %v", err)
	}
	b := New(SkyrimSE, pathB)
	if err := b.ParseFile(false); err != nil {
		t.Fatalf("ParseFile(B) returned error: %v", err)
	}

	if !a.OverlapsWith(b) {
		t.Errorf("OverlapsWith() = false, want true (both override the same master record)")
	}
	if !b.OverlapsWith(a) {
		t.Errorf("OverlapsWith() should be symmetric")
	}
}

func TestOverlapsWithNoSharedRecords(t *testing.T) {
	header := buildHeaderRecord(0, 1, []string{"Skyrim.esm"}, "")
	group := buildGroup("TEST", buildGroupRecord("ABCD", 0, 0x00000005))
	otherGroup := buildGroup("TEST", buildGroupRecord("ABCD", 0, 0x00000006))

	var contentA []byte
	contentA = append(contentA, header...)
	contentA = append(contentA, group...)
	pathA := writeTempPlugin(t, "A.esp", contentA)

	var contentB []byte
	contentB = append(contentB, header...)
	contentB = append(contentB, otherGroup...)
	pathB := writeTempPlugin(t, "B.esp", contentB)

	a := New(SkyrimSE, pathA)
	if err := a.ParseFile(false); err != nil {
		t.Fatalf("ParseFile(A) returned error: %v", err)
	}
	b := New(SkyrimSE, pathB)
	if err := b.ParseFile(false); err != nil {
		t.Fatalf("ParseFile(B) returned error: %v", err)
	}

	if a.OverlapsWith(b) {
		t.Errorf("OverlapsWith() = true, want false for disjoint object indices")
	}
}

func TestParseFileFailureLeavesPriorState(t *testing.T) {
	header := buildHeaderRecord(0, 1, []string{"Skyrim.esm"}, "first")
	path := writeTempPlugin(t, "Reparse.esp", header)

	p := New(SkyrimSE, path)
	if err := p.ParseFile(true); err != nil {
		t.Fatalf("initial ParseFile returned error: %v", err)
	}

	// Overwrite the file with garbage that fails to parse.
	if err := os.WriteFile(path, []byte("not a plugin"), 0o644); err != nil {
		t.Fatalf("failed to corrupt fixture: %v", err)
	}

	if err := p.ParseFile(true); err == nil {
		t.Fatalf("expected the second ParseFile to fail")
	}

	if desc, ok := p.Description(); !ok || desc != "first" {
		t.Errorf("Description() after failed re-parse = (%q, %v), want (%q, true)", desc, ok, "first")
	}
}

func TestFilenameOfRejectsEmptyBase(t *testing.T) {
	if _, err := filenameOf("/"); err == nil {
		t.Errorf("filenameOf(\"/\") returned nil error, want an error")
	}
}
