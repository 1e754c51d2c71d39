package wasm

// Tiny WebAssembly binary assembler for test guests.

const (
	opUnreachable = 0x00
	opLoop        = 0x03
	opBr          = 0x0c
	opEnd         = 0x0b
	opCall        = 0x10
	opDrop        = 0x1a
	opI32Const    = 0x41
	opI64Const    = 0x42
	blockVoid     = 0x40

	valI32 = 0x7f
	valI64 = 0x7e
)

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}

func str(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id byte, body []byte) []byte {
	return append(append([]byte{id}, uleb(uint64(len(body)))...), body...)
}

func funcType(params, results []byte) []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint64(len(params)))...)
	out = append(out, params...)
	out = append(out, uleb(uint64(len(results)))...)
	return append(out, results...)
}

func i32Const(v int32) []byte { return append([]byte{opI32Const}, sleb(int64(v))...) }
func i64Const(v int64) []byte { return append([]byte{opI64Const}, sleb(v)...) }

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Function indices in every guest: the two host imports come first.
const (
	fnHostCall = 0
	fnHostLog  = 1
)

const (
	responseOffset = 256
	scratchOffset  = 2048
	heapOffset     = 8192
)

// guest describes a test module. step runs prelude and then returns the
// packed location of response.
type guest struct {
	response string
	prelude  []byte
	// scratch is placed at scratchOffset for prelude use.
	scratch string
	// stepSig overrides the step result type.
	stepResults []byte
	noMalloc    bool
	extraImport string
}

func (g guest) build() []byte {
	stepResults := g.stepResults
	if stepResults == nil {
		stepResults = []byte{valI64}
	}

	types := vec(
		funcType([]byte{valI32}, []byte{valI32}),         // 0 malloc
		funcType([]byte{valI32, valI32}, []byte{valI64}), // 1 osagent.call
		funcType([]byte{valI32, valI32, valI32}, nil),    // 2 osagent.log
		funcType([]byte{valI32, valI32}, stepResults),    // 3 step
		funcType(nil, nil),                               // 4 extra import
	)

	imports := [][]byte{
		concat(str(HostModule), str(ImportCall), []byte{0x00}, uleb(1)),
		concat(str(HostModule), str(ImportLog), []byte{0x00}, uleb(2)),
	}
	if g.extraImport != "" {
		imports = append(imports, concat(str(g.extraImport), str("f"), []byte{0x00}, uleb(4)))
	}
	nImports := len(imports)

	funcs := vec(uleb(0), uleb(3))
	mallocIdx, stepIdx := nImports, nImports+1

	exports := [][]byte{
		concat(str(ExportMemory), []byte{0x02}, uleb(0)),
		concat(str(ExportStep), []byte{0x00}, uleb(uint64(stepIdx))),
	}
	if !g.noMalloc {
		exports = append(exports, concat(str(ExportMalloc), []byte{0x00}, uleb(uint64(mallocIdx))))
	}

	mallocBody := concat([]byte{0x00}, i32Const(heapOffset), []byte{opEnd})
	var tail []byte
	if stepResults[0] == valI64 {
		tail = i64Const(int64(pack(responseOffset, uint32(len(g.response)))))
	} else {
		tail = i32Const(responseOffset)
	}
	stepBody := concat([]byte{0x00}, g.prelude, tail, []byte{opEnd})
	code := vec(
		append(uleb(uint64(len(mallocBody))), mallocBody...),
		append(uleb(uint64(len(stepBody))), stepBody...),
	)

	data := vec(
		concat([]byte{0x00}, i32Const(responseOffset), []byte{opEnd}, str(g.response)),
		concat([]byte{0x00}, i32Const(scratchOffset), []byte{opEnd}, str(g.scratch)),
	)

	return concat(
		[]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00},
		section(1, types),
		section(2, vec(imports...)),
		section(3, funcs),
		section(5, vec([]byte{0x00, 0x01})),
		section(7, vec(exports...)),
		section(10, code),
		section(11, data),
	)
}

// callHost invokes osagent.call on the scratch buffer and drops the result.
func callHost(length int) []byte {
	return concat(i32Const(scratchOffset), i32Const(int32(length)), []byte{opCall}, uleb(fnHostCall), []byte{opDrop})
}

// logScratch invokes osagent.log on the scratch buffer.
func logScratch(level int32, length int) []byte {
	return concat(i32Const(level), i32Const(scratchOffset), i32Const(int32(length)), []byte{opCall}, uleb(fnHostLog))
}

// spin loops forever.
func spin() []byte {
	return []byte{opLoop, blockVoid, opBr, 0x00, opEnd}
}
