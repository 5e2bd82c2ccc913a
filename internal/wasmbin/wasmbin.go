// Package wasmbin emits a minimal, self-contained wasm program so the
// renderer can run end to end without an external wasm toolchain. The
// program exports a linear memory named "memory" (one page) and a niladic
// "step" function that increments a 32-bit counter at address 0 on every
// call.
package wasmbin

// wasm binary encoding constants.
const (
	secType   = 0x01
	secFunc   = 0x03
	secMemory = 0x05
	secExport = 0x07
	secCode   = 0x0a

	kindFunc   = 0x00
	kindMemory = 0x02
)

// uleb encodes v as an unsigned LEB128 sequence.
func uleb(v uint32) []byte {
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

// section frames a section body with its id and size.
func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(body)))...)
	return append(out, body...)
}

// name encodes a length-prefixed identifier.
func name(s string) []byte {
	out := uleb(uint32(len(s)))
	return append(out, s...)
}

// DemoModule returns the wasm bytes of the counter program.
func DemoModule() []byte {
	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// One function type: () -> ().
	mod = append(mod, section(secType, []byte{0x01, 0x60, 0x00, 0x00})...)

	// One function using type 0.
	mod = append(mod, section(secFunc, []byte{0x01, 0x00})...)

	// One memory, min 1 page, no max.
	mod = append(mod, section(secMemory, []byte{0x01, 0x00, 0x01})...)

	// Exports: "memory" and "step".
	exports := uleb(2)
	exports = append(exports, name("memory")...)
	exports = append(exports, kindMemory, 0x00)
	exports = append(exports, name("step")...)
	exports = append(exports, kindFunc, 0x00)
	mod = append(mod, section(secExport, exports)...)

	// step body:
	//   i32.const 0            ;; store address
	//   i32.const 0
	//   i32.load align=4
	//   i32.const 1
	//   i32.add
	//   i32.store align=4
	body := []byte{
		0x00,             // no locals
		0x41, 0x00,       // i32.const 0
		0x41, 0x00,       // i32.const 0
		0x28, 0x02, 0x00, // i32.load align=2^2 offset=0
		0x41, 0x01,       // i32.const 1
		0x6a,             // i32.add
		0x36, 0x02, 0x00, // i32.store align=2^2 offset=0
		0x0b,             // end
	}
	code := uleb(1)
	code = append(code, uleb(uint32(len(body)))...)
	code = append(code, body...)
	mod = append(mod, section(secCode, code)...)

	return mod
}
