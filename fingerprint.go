package framegraph

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"sort"
)

// TimeCode is a position on the logical timeline, in seconds.
type TimeCode float64

// Fingerprint summarizes everything that influences a node's output:
// its type, its parameters, the versions of its upstream frames, and
// the logical time for time-varying nodes. Two executions of a node
// with equal fingerprints produce identical output, so a cached frame
// keyed by (node, fingerprint) can be reused.
type Fingerprint uint64

// computeFingerprint hashes a node's identity-relevant state with
// FNV-1a. Input versions are hashed in declared port order; 0 marks an
// unconnected port.
func computeFingerprint(def *Definition, node *Node, inputVersions []uint64, t TimeCode) Fingerprint {
	h := fnv.New64a()
	var scratch [8]byte

	writeStr := func(s string) {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(scratch[:], v)
		_, _ = h.Write(scratch[:])
	}

	writeStr(node.Type)

	names := make([]string, 0, len(node.Params))
	for name := range node.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := node.Params[name]
		writeStr(name)
		_, _ = h.Write([]byte{byte(p.Kind)})
		switch p.Kind {
		case ParamBool:
			if p.Bool {
				_, _ = h.Write([]byte{1})
			} else {
				_, _ = h.Write([]byte{0})
			}
		case ParamInt:
			writeU64(uint64(p.Int))
		case ParamFloat:
			writeU64(math.Float64bits(p.Float))
		case ParamVec4:
			for _, v := range p.Vec4 {
				writeU64(math.Float64bits(v))
			}
		case ParamText, ParamFile:
			writeStr(p.Text)
		case ParamDimensions:
			writeU64(uint64(p.Dims[0])<<32 | uint64(p.Dims[1]))
		}
	}

	for _, v := range inputVersions {
		writeU64(v)
	}

	if def.TimeVarying {
		writeU64(math.Float64bits(float64(t)))
	}

	return Fingerprint(h.Sum64())
}
