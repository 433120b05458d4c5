package trainer

import "github.com/danieldk/finalfrontier/internal/model"

// ContextModel resolves a context word and its signed offset from the focus
// position to an output-matrix row. The three variants share all pair
// enumeration mechanics and differ only in this resolution.
type ContextModel interface {
	// RowsPerWord returns how many output rows each vocabulary word owns.
	RowsPerWord() int
	// OutputRow maps a context word and its offset (j−i, never zero, with
	// |offset| bounded by the context size) to an output-matrix row.
	OutputRow(word, offset int) int
}

func newContextModel(t model.ModelType, contextSize int) ContextModel {
	switch t {
	case model.DirGram:
		return dirGram{}
	case model.StructGram:
		return structGram{contextSize: contextSize}
	default:
		return skipGram{}
	}
}

// skipGram ignores the context word's position: one output row per word.
type skipGram struct{}

func (skipGram) RowsPerWord() int { return 1 }

func (skipGram) OutputRow(word, _ int) int { return word }

// dirGram keeps one output row per word per direction.
type dirGram struct{}

func (dirGram) RowsPerWord() int { return 2 }

func (dirGram) OutputRow(word, offset int) int {
	row := word * 2
	if offset > 0 {
		row++
	}
	return row
}

// structGram keeps one output row per word per signed offset. Offsets
// -c..-1,1..c map to positions 0..2c-1.
type structGram struct {
	contextSize int
}

func (s structGram) RowsPerWord() int { return 2 * s.contextSize }

func (s structGram) OutputRow(word, offset int) int {
	pos := offset + s.contextSize
	if offset > 0 {
		pos--
	}
	return word*2*s.contextSize + pos
}
