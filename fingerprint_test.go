package framegraph

import "testing"

func fpNode(params map[string]Param) (*Definition, *Node) {
	def := &Definition{Type: "brightness"}
	n := &Node{ID: 1, Type: "brightness", Params: params}
	if n.Params == nil {
		n.Params = map[string]Param{}
	}
	return def, n
}

func TestFingerprintDeterministic(t *testing.T) {
	def, n := fpNode(map[string]Param{
		"brightness": FloatParam(1.5),
		"enabled":    BoolParam(true),
	})
	a := computeFingerprint(def, n, []uint64{7}, 0)
	b := computeFingerprint(def, n, []uint64{7}, 0)
	if a != b {
		t.Fatalf("fingerprint not deterministic: %x != %x", a, b)
	}
}

func TestFingerprintParamSensitive(t *testing.T) {
	def, n := fpNode(map[string]Param{"brightness": FloatParam(1.0)})
	a := computeFingerprint(def, n, nil, 0)
	n.Params["brightness"] = FloatParam(2.0)
	b := computeFingerprint(def, n, nil, 0)
	if a == b {
		t.Fatal("param change did not change fingerprint")
	}
}

func TestFingerprintInputVersionSensitive(t *testing.T) {
	def, n := fpNode(nil)
	a := computeFingerprint(def, n, []uint64{1}, 0)
	b := computeFingerprint(def, n, []uint64{2}, 0)
	if a == b {
		t.Fatal("input version change did not change fingerprint")
	}
}

func TestFingerprintUnconnectedInputDistinct(t *testing.T) {
	def, n := fpNode(nil)
	a := computeFingerprint(def, n, []uint64{0}, 0)
	b := computeFingerprint(def, n, []uint64{1}, 0)
	if a == b {
		t.Fatal("unconnected port indistinguishable from version 1")
	}
}

func TestFingerprintTypeSensitive(t *testing.T) {
	def, n := fpNode(nil)
	a := computeFingerprint(def, n, nil, 0)
	n2 := &Node{ID: 1, Type: "grayscale", Params: map[string]Param{}}
	b := computeFingerprint(&Definition{Type: "grayscale"}, n2, nil, 0)
	if a == b {
		t.Fatal("type change did not change fingerprint")
	}
}

func TestFingerprintTimeOnlyForTimeVarying(t *testing.T) {
	def, n := fpNode(nil)
	a := computeFingerprint(def, n, nil, 0)
	b := computeFingerprint(def, n, nil, 3.5)
	if a != b {
		t.Fatal("time changed fingerprint of a static node")
	}

	def.TimeVarying = true
	c := computeFingerprint(def, n, nil, 0)
	d := computeFingerprint(def, n, nil, 3.5)
	if c == d {
		t.Fatal("time did not change fingerprint of a time-varying node")
	}
}

func TestFingerprintParamOrderIndependent(t *testing.T) {
	// Map iteration order varies; the hash sorts names so equal param
	// sets always produce equal fingerprints.
	def, n := fpNode(map[string]Param{
		"a": FloatParam(1),
		"b": FloatParam(2),
		"c": FloatParam(3),
	})
	want := computeFingerprint(def, n, nil, 0)
	for i := 0; i < 20; i++ {
		m := map[string]Param{}
		m["c"] = FloatParam(3)
		m["a"] = FloatParam(1)
		m["b"] = FloatParam(2)
		n.Params = m
		if got := computeFingerprint(def, n, nil, 0); got != want {
			t.Fatalf("iteration %d: fingerprint %x != %x", i, got, want)
		}
	}
}
