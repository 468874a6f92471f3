package chat

import "duochat/internal/model"

// Flag is the outcome of looking up one annotation flag for a viewer.
// A message the viewer never annotated has no row, which reads as FlagAbsent.
type Flag int

const (
	FlagAbsent Flag = iota
	FlagFalse
	FlagTrue
)

// Set reports the effective value; absence means false.
func (f Flag) Set() bool {
	return f == FlagTrue
}

func flagOf(found, v bool) Flag {
	switch {
	case !found:
		return FlagAbsent
	case v:
		return FlagTrue
	default:
		return FlagFalse
	}
}

// Annotation is a viewer's state row for one message, or its absence.
type Annotation struct {
	State model.MessageState
	Found bool
}

func (a Annotation) Important() Flag { return flagOf(a.Found, a.State.IsImportant) }

func (a Annotation) Deleted() Flag { return flagOf(a.Found, a.State.IsDeleted) }

// annotationIndex holds one viewer's state rows keyed by message id.
type annotationIndex map[string]model.MessageState

// indexAnnotations keeps only rows owned by viewerID.
func indexAnnotations(states []model.MessageState, viewerID string) annotationIndex {
	idx := make(annotationIndex, len(states))
	for _, st := range states {
		if st.UserID == viewerID {
			idx[st.MessageID] = st
		}
	}
	return idx
}

func (idx annotationIndex) lookup(messageID string) Annotation {
	st, ok := idx[messageID]
	return Annotation{State: st, Found: ok}
}
