package call

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxlane/go-frontdesk/pkg/notify"
	"github.com/voxlane/go-frontdesk/pkg/recording"
)

// Finalizer classifies a finished call exactly once and emits the
// notification events. Every step is fault-isolated: a recording miss or a
// webhook failure never blocks classification or the other deliveries.
type Finalizer struct {
	sink       notify.Sink
	recordings recording.Resolver
	logger     *slog.Logger

	// CallLogEnabled gates the CALL_LOG event.
	CallLogEnabled bool

	// DefaultCountry prefixes bare local callback numbers.
	DefaultCountry string
}

// NewFinalizer creates a finalizer. sink and recordings may be nil, in which
// case delivery and recording resolution are skipped with a log.
func NewFinalizer(sink notify.Sink, recordings recording.Resolver, logger *slog.Logger) *Finalizer {
	return &Finalizer{
		sink:           sink,
		recordings:     recordings,
		logger:         logger.With("component", "call.finalizer"),
		CallLogEnabled: true,
		DefaultCountry: "+1",
	}
}

// Finalize runs the once-per-call classification. A second invocation (close
// racing with error) is a no-op thanks to the CAS flag on CallState.
func (f *Finalizer) Finalize(ctx context.Context, state *CallState, lead *LeadRecord, endReason string) {
	if !state.MarkFinalized() {
		f.logger.Debug("finalize already ran", "call_id", state.ID, "reason", endReason)
		return
	}
	if state.EndedAt.IsZero() {
		state.EndedAt = time.Now()
	}

	logger := f.logger.With("call_id", state.ID)
	duration := state.Duration()

	rec := f.resolveRecording(ctx, state, logger)

	decision := Decide(lead, state.Caller, state.CallerWithheld, f.DefaultCountry)

	logger.Info("call finalized",
		"decision", string(decision),
		"reason", string(lead.Reason),
		"duration_s", duration.Seconds(),
		"end_reason", endReason,
	)

	base := notify.Event{
		CallID:          state.ID,
		CallSID:         state.CallSID,
		Caller:          state.Caller,
		StartedAt:       state.StartedAt,
		EndedAt:         state.EndedAt,
		DurationSeconds: duration.Seconds(),
		EndReason:       endReason,
		Transcript:      transcriptPayload(state),
		Lead: &notify.Lead{
			FullName:         lead.FullName,
			Subject:          lead.Subject,
			CallbackToNumber: lead.CallbackToNumber,
			Reason:           string(lead.Reason),
		},
		Recording: rec,
	}

	if f.CallLogEnabled {
		callLog := base
		callLog.Kind = notify.KindCallLog
		f.deliver(ctx, &callLog, logger)
	}

	outcome := base
	if decision == DecisionFinal {
		outcome.Kind = notify.KindFinal
	} else {
		outcome.Kind = notify.KindAbandoned
	}
	f.deliver(ctx, &outcome, logger)
}

// resolveRecording fetches recording metadata best-effort. Failure leaves the
// recording fields null.
func (f *Finalizer) resolveRecording(ctx context.Context, state *CallState, logger *slog.Logger) *notify.Recording {
	if f.recordings == nil || state.CallSID == "" {
		return nil
	}

	meta, err := f.recordings.Resolve(ctx, state.CallSID)
	if err != nil {
		logger.Warn("recording resolution failed", "error", err)
		return nil
	}
	return &notify.Recording{
		SID:      meta.SID,
		URL:      meta.URL,
		Duration: meta.Duration,
	}
}

// deliver sends one event; failures are logged and dropped, never propagated.
func (f *Finalizer) deliver(ctx context.Context, event *notify.Event, logger *slog.Logger) {
	if f.sink == nil {
		logger.Debug("no notification sink configured, dropping event", "kind", event.Kind)
		return
	}
	if err := f.sink.Deliver(ctx, event); err != nil {
		logger.Warn("notification dropped after retries",
			"kind", event.Kind,
			"error", err,
		)
	}
}

func transcriptPayload(state *CallState) []notify.TranscriptEntry {
	if len(state.Transcript) == 0 {
		return nil
	}
	out := make([]notify.TranscriptEntry, len(state.Transcript))
	for i, entry := range state.Transcript {
		out[i] = notify.TranscriptEntry{
			Role: string(entry.Role),
			Text: entry.Text,
			At:   entry.At,
		}
	}
	return out
}
