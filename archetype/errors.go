package archetype

import (
	"github.com/rotisserie/eris"
)

var (
	ErrEntityDoesNotExist   = eris.New("entity does not exist in archetype")
	ErrEntityAlreadyExists  = eris.New("entity already exists in archetype")
	ErrSharedValueMismatch  = eris.New("shared values do not match the archetype's declared shared fragment types")
	ErrChunkBudgetTooSmall  = eris.New("chunk byte budget cannot fit a single entity")
	ErrLayoutMismatch       = eris.New("sibling archetype fragment layout does not match composition")
	ErrInvalidComposition   = eris.New("invalid composition descriptor")
	ErrDuplicateSharedValue = eris.New("duplicate fragment type in shared value set")
)
