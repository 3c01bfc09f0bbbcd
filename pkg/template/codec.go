package template

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// programPayload is the serialized shape of a Program. The encoding exists
// only for caching; it round-trips losslessly back to an equivalent
// instruction sequence and fragment table.
type programPayload struct {
	Instructions []Instruction `json:"instructions"`
	Fragments    []string      `json:"fragments"`
}

// EncodeProgram serializes a Program for persistence.
func EncodeProgram(p *Program) ([]byte, error) {
	return json.Marshal(programPayload{Instructions: p.ops, Fragments: p.frags})
}

// DecodeProgram reconstructs a Program from EncodeProgram output. The
// payload is validated structurally so a corrupt cache entry fails here
// rather than mid-render.
func DecodeProgram(data []byte) (*Program, error) {
	var payload programPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}

	n := len(payload.Instructions)
	for i, in := range payload.Instructions {
		switch in.Op {
		case OpEval, OpExec, OpIf, OpLoop, OpTransform:
			if in.Frag < 0 || in.Frag >= len(payload.Fragments) {
				return nil, fmt.Errorf("decode program: instruction %d references missing fragment %d", i, in.Frag)
			}
		case OpEmit, OpJump, OpCapture, OpEnd:
		default:
			return nil, fmt.Errorf("decode program: instruction %d has unknown opcode %d", i, in.Op)
		}
		switch in.Op {
		case OpIf, OpJump:
			if in.Target < 0 || in.Target > n {
				return nil, fmt.Errorf("decode program: instruction %d jump target %d out of range", i, in.Target)
			}
		case OpLoop:
			if in.BodyStart != i+1 || in.BodyEnd < in.BodyStart || in.BodyEnd >= n {
				return nil, fmt.Errorf("decode program: instruction %d has invalid body range [%d, %d)", i, in.BodyStart, in.BodyEnd)
			}
		}
	}

	return &Program{ops: payload.Instructions, frags: payload.Fragments}, nil
}
