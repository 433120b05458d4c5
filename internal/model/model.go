package model

import "fmt"

// ModelType selects how a context word is mapped to an output-matrix row.
type ModelType int

const (
	// SkipGram ignores the context word's position (Mikolov et al., 2013).
	SkipGram ModelType = iota
	// StructGram conditions the output row on the exact signed offset of the
	// context word relative to the focus word (Ling et al., 2015).
	StructGram
	// DirGram conditions the output row on whether the context word precedes
	// or follows the focus word (Song et al., 2018).
	DirGram
)

// ParseModelType converts a model name from the command line.
func ParseModelType(s string) (ModelType, error) {
	switch s {
	case "skipgram":
		return SkipGram, nil
	case "structgram":
		return StructGram, nil
	case "dirgram":
		return DirGram, nil
	default:
		return 0, fmt.Errorf("unknown model type: %s", s)
	}
}

func (m ModelType) String() string {
	switch m {
	case SkipGram:
		return "skipgram"
	case StructGram:
		return "structgram"
	case DirGram:
		return "dirgram"
	default:
		return fmt.Sprintf("ModelType(%d)", int(m))
	}
}

// OutputRows returns the number of output-matrix rows per vocabulary word for
// the given context size: one for skipgram, one per direction for dirgram, and
// one per signed offset for structgram.
func (m ModelType) OutputRows(contextSize int) int {
	switch m {
	case DirGram:
		return 2
	case StructGram:
		return 2 * contextSize
	default:
		return 1
	}
}
