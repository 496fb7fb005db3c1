package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// liveEventName is the generic outbound event carrying a notification to a
// live connection. Part of the client contract.
const liveEventName = "notification"

// DispatcherConfig bounds external-channel attempts.
// Zero values fall back to defaults in NewDispatcher.
type DispatcherConfig struct {
	// MaxAttempts per external channel before advancing to the next one.
	MaxAttempts int
	// AttemptTimeout caps a single gateway call.
	AttemptTimeout time.Duration
	// BackoffBase is the first retry delay; it doubles per retry.
	BackoffBase time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	out := c
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.AttemptTimeout <= 0 {
		out.AttemptTimeout = 5 * time.Second
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = 200 * time.Millisecond
	}
	return out
}

// Dispatcher walks an envelope's channel order: live first when listed, then
// external gateways, stopping at the first success unless the envelope says
// otherwise.
//
// Delivery errors are retried per the bounded policy, then recorded; they are
// never raised to the producer, since dispatch is decoupled from the event
// path.
type Dispatcher struct {
	live     LiveSender
	gateways map[Channel]Gateway
	contacts ContactResolver
	recorder Recorder

	cfg   DispatcherConfig
	log   *slog.Logger
	sleep func(time.Duration) // injectable for deterministic tests
}

func NewDispatcher(live LiveSender, gateways map[Channel]Gateway, contacts ContactResolver, cfg DispatcherConfig, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		live:     live,
		gateways: gateways,
		contacts: contacts,
		cfg:      cfg.withDefaults(),
		log:      log,
		sleep:    time.Sleep,
	}
}

// SetRecorder attaches the audit hook for exhausted channel attempts.
func (d *Dispatcher) SetRecorder(r Recorder) { d.recorder = r }

// Send dispatches one envelope and reports what happened. It never returns an
// error: a fully failed walk is a DeliveryResult with Delivered=false.
func (d *Dispatcher) Send(ctx context.Context, env Envelope) DeliveryResult {
	res := DeliveryResult{EnvelopeID: env.ID}

	for _, ch := range env.ChannelOrder {
		var attempt ChannelAttempt
		if ch == ChannelLive {
			attempt = d.sendLive(env)
		} else {
			attempt = d.sendExternal(ctx, ch, env)
		}
		res.Attempts = append(res.Attempts, attempt)

		if attempt.OK {
			if !res.Delivered {
				res.Delivered = true
				res.Channel = ch
			}
			if !env.DeliverAll {
				return res
			}
		}
	}

	if !res.Delivered {
		d.log.Warn("envelope exhausted all channels",
			"envelope_id", env.ID, "recipient_id", env.RecipientID, "template", env.TemplateID)
	}
	return res
}

// SendBulk dispatches envelopes independently: one envelope's failure never
// affects the others, and the counts do not depend on processing order.
func (d *Dispatcher) SendBulk(ctx context.Context, envs []Envelope) BulkResult {
	var out BulkResult
	for _, env := range envs {
		if d.Send(ctx, env).Delivered {
			out.SuccessCount++
		} else {
			out.FailedCount++
		}
	}
	return out
}

func (d *Dispatcher) sendLive(env Envelope) ChannelAttempt {
	attempt := ChannelAttempt{Channel: ChannelLive, Attempts: 1}
	if d.live == nil {
		attempt.Error = "live sender not configured"
		return attempt
	}
	// An offline recipient is a normal routing outcome, not a delivery error;
	// it simply moves the walk to the next channel.
	attempt.OK = d.live.Unicast(env.RecipientID, liveEventName, map[string]any{
		"id":         env.ID,
		"templateId": env.TemplateID,
		"payload":    env.Payload,
	})
	if !attempt.OK {
		attempt.Error = "recipient offline"
	}
	return attempt
}

func (d *Dispatcher) sendExternal(ctx context.Context, ch Channel, env Envelope) ChannelAttempt {
	attempt := ChannelAttempt{Channel: ch}

	gw, ok := d.gateways[ch]
	if !ok || gw == nil {
		attempt.Error = fmt.Sprintf("no gateway for channel %q", ch)
		d.record(ctx, env.ID, ch, attempt.Error)
		return attempt
	}

	var to Contact
	if d.contacts != nil {
		var err error
		to, err = d.contacts.Contact(ctx, env.RecipientID)
		if err != nil {
			attempt.Error = fmt.Sprintf("contact lookup: %v", err)
			d.record(ctx, env.ID, ch, attempt.Error)
			return attempt
		}
	}

	var lastErr error
	for try := 1; try <= d.cfg.MaxAttempts; try++ {
		attempt.Attempts = try

		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		err := gw.Send(attemptCtx, to, env.TemplateID, env.Payload)
		cancel()

		if err == nil {
			attempt.OK = true
			return attempt
		}
		lastErr = err
		d.log.Warn("gateway send failed",
			"envelope_id", env.ID, "channel", ch, "gateway", gw.Name(), "try", try, "err", err)

		if try < d.cfg.MaxAttempts {
			d.sleep(d.cfg.BackoffBase << (try - 1))
		}
	}

	attempt.Error = lastErr.Error()
	d.record(ctx, env.ID, ch, attempt.Error)
	return attempt
}

func (d *Dispatcher) record(ctx context.Context, envelopeID string, ch Channel, reason string) {
	if d.recorder == nil {
		return
	}
	d.recorder.DeliveryFailed(ctx, envelopeID, string(ch), reason)
}
