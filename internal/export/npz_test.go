package export

import (
	"archive/zip"
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestNPYRoundTrip(t *testing.T) {
	arrays := []npyArray{
		float64sArray([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6}),
		boolsArray([]int{4}, []bool{true, false, false, true}),
		int64Scalar(50000),
		stringScalar("2halfcheetah"),
	}

	for _, array := range arrays {
		var buf bytes.Buffer
		if err := writeNPY(&buf, array); err != nil {
			t.Fatalf("write npy %q: %v", array.Descr, err)
		}
		// Header block (magic through padded dict) must end on a 64-byte
		// boundary, the numpy alignment convention.
		headerLen := buf.Len() - len(array.Data)
		if headerLen%64 != 0 {
			t.Fatalf("dtype %q: header length %d not 64-aligned", array.Descr, headerLen)
		}

		loaded, err := readNPY(&buf)
		if err != nil {
			t.Fatalf("read npy %q: %v", array.Descr, err)
		}
		if loaded.Descr != array.Descr || !reflect.DeepEqual(loaded.Shape, array.Shape) {
			t.Fatalf("round trip header mismatch: got %q %v, want %q %v",
				loaded.Descr, loaded.Shape, array.Descr, array.Shape)
		}
		if !bytes.Equal(loaded.Data, array.Data) {
			t.Fatalf("dtype %q: data mismatch", array.Descr)
		}
	}
}

func TestNPYScalarAccessors(t *testing.T) {
	if got, err := int64Scalar(-7).int64(); err != nil || got != -7 {
		t.Fatalf("int64 scalar: got %d err %v", got, err)
	}
	if got, err := stringScalar("Replay").str(); err != nil || got != "Replay" {
		t.Fatalf("string scalar: got %q err %v", got, err)
	}
	empty := stringScalar("")
	if empty.Descr != "<U1" {
		t.Fatalf("empty string scalar dtype: got %q, want <U1", empty.Descr)
	}
	if got, err := empty.str(); err != nil || got != "" {
		t.Fatalf("empty string scalar: got %q err %v", got, err)
	}
	values, err := float64sArray([]int{3}, []float64{0.5, -1.5, 2.25}).float64s()
	if err != nil || !reflect.DeepEqual(values, []float64{0.5, -1.5, 2.25}) {
		t.Fatalf("float64s: got %v err %v", values, err)
	}
	flags, err := boolsArray([]int{2}, []bool{false, true}).bools()
	if err != nil || !reflect.DeepEqual(flags, []bool{false, true}) {
		t.Fatalf("bools: got %v err %v", flags, err)
	}
}

func TestNPZRoundTrip(t *testing.T) {
	trajectory := sampleTrajectory()

	var buf bytes.Buffer
	if err := WriteNPZ(&buf, trajectory); err != nil {
		t.Fatalf("write npz: %v", err)
	}

	loaded, err := ReadNPZ(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read npz: %v", err)
	}
	if !reflect.DeepEqual(loaded, trajectory) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", loaded, trajectory)
	}
}

func TestNPZWithoutStates(t *testing.T) {
	trajectory := sampleTrajectory()
	trajectory.States = nil
	trajectory.Meta.StateDim = 0

	var buf bytes.Buffer
	if err := WriteNPZ(&buf, trajectory); err != nil {
		t.Fatalf("write npz: %v", err)
	}
	loaded, err := ReadNPZ(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read npz: %v", err)
	}
	if loaded.States != nil || loaded.Meta.StateDim != 0 {
		t.Fatalf("expected no states, got %+v", loaded.Meta)
	}
	if !reflect.DeepEqual(loaded.Rewards, trajectory.Rewards) {
		t.Fatalf("rewards mismatch: %v", loaded.Rewards)
	}
}

func TestReadNPZRejectsInconsistentShapes(t *testing.T) {
	// Observations declare 6 timesteps, rewards only 3. The reader must
	// report the inconsistency instead of indexing past the rewards data.
	writeEntries := func(entries []npzEntry) []byte {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		for _, entry := range entries {
			ew, err := zw.Create(entry.name + ".npy")
			if err != nil {
				t.Fatalf("create entry %s: %v", entry.name, err)
			}
			if err := writeNPY(ew, entry.array); err != nil {
				t.Fatalf("write entry %s: %v", entry.name, err)
			}
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("close zip: %v", err)
		}
		return buf.Bytes()
	}

	obs := float64sArray([]int{6, 2, 2}, make([]float64, 24))
	act := float64sArray([]int{6, 2, 1}, make([]float64, 12))
	shortRewards := float64sArray([]int{3, 2}, make([]float64, 6))

	data := writeEntries([]npzEntry{
		{"observations", obs},
		{"actions", act},
		{"rewards", shortRewards},
	})
	_, err := ReadNPZ(bytes.NewReader(data), int64(len(data)))
	if err == nil || !strings.Contains(err.Error(), "rewards") {
		t.Fatalf("expected rewards element-count error, got %v", err)
	}

	shortTerminals := boolsArray([]int{3, 2}, make([]bool, 6))
	data = writeEntries([]npzEntry{
		{"observations", obs},
		{"actions", act},
		{"rewards", float64sArray([]int{6, 2}, make([]float64, 12))},
		{"terminals", shortTerminals},
	})
	_, err = ReadNPZ(bytes.NewReader(data), int64(len(data)))
	if err == nil || !strings.Contains(err.Error(), "terminals") {
		t.Fatalf("expected terminals element-count error, got %v", err)
	}

	shortStates := float64sArray([]int{3, 4}, make([]float64, 12))
	data = writeEntries([]npzEntry{
		{"observations", obs},
		{"actions", act},
		{"rewards", float64sArray([]int{6, 2}, make([]float64, 12))},
		{"states", shortStates},
	})
	_, err = ReadNPZ(bytes.NewReader(data), int64(len(data)))
	if err == nil || !strings.Contains(err.Error(), "states") {
		t.Fatalf("expected states element-count error, got %v", err)
	}
}

func TestReadNPZRejectsMissingKeys(t *testing.T) {
	var buf bytes.Buffer
	trajectory := sampleTrajectory()
	if err := WriteNPZ(&buf, trajectory); err != nil {
		t.Fatalf("write npz: %v", err)
	}

	if _, err := ReadNPZ(bytes.NewReader([]byte("not a zip")), 9); err == nil {
		t.Fatal("expected error for malformed npz")
	}
}
