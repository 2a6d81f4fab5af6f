package tomasulo

import "github.com/rs/zerolog"

// tracer emits one structured event per pipeline action. A nil tracer is
// silent, so tracing costs nothing unless enabled.
type tracer struct {
	log zerolog.Logger
}

func (t *tracer) issue(cycle int, rec *InstrRecord) {
	if t == nil {
		return
	}
	t.log.Debug().
		Int("cycle", cycle).
		Int("id", rec.ID).
		Int("tag", rec.Tag).
		Bool("speculative", rec.Speculative).
		Str("inst", rec.Inst.String()).
		Msg("issue")
}

func (t *tracer) dispatch(cycle int, e *RSEntry) {
	if t == nil {
		return
	}
	t.log.Debug().
		Int("cycle", cycle).
		Int("id", e.InstrID).
		Str("station", e.Name).
		Int("latency", e.RemainingCycles).
		Msg("dispatch")
}

func (t *tracer) broadcast(cycle int, e *RSEntry) {
	if t == nil {
		return
	}
	t.log.Debug().
		Int("cycle", cycle).
		Int("id", e.InstrID).
		Int("tag", e.ROBTag).
		Int64("value", e.Result).
		Msg("broadcast")
}

func (t *tracer) commit(cycle int, entry *ROBEntry) {
	if t == nil {
		return
	}
	ev := t.log.Debug().
		Int("cycle", cycle).
		Int("id", entry.Record.ID).
		Int("tag", entry.ID).
		Str("inst", entry.Record.Inst.String())
	if entry.HasDest {
		ev = ev.Uint8("dest", entry.DestReg).Int64("value", entry.Value)
	}
	ev.Msg("commit")
}

func (t *tracer) squash(cycle int, branch *ROBEntry, flushed int, newPC int) {
	if t == nil {
		return
	}
	t.log.Info().
		Int("cycle", cycle).
		Int("id", branch.Record.ID).
		Int("flushed", flushed).
		Int("pc", newPC).
		Msg("squash")
}

func (t *tracer) trap(cycle int, rec *InstrRecord) {
	if t == nil {
		return
	}
	t.log.Warn().
		Int("cycle", cycle).
		Int("id", rec.ID).
		Str("inst", rec.Inst.String()).
		Str("trap", rec.Trap.Error()).
		Msg("trap")
}
