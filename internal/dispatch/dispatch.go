// Package dispatch runs a mail-merge batch: it turns recipient records into
// personalized messages and hands them to a mail transport one at a time.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/byanjiong/mailmerge/internal/email"
	"github.com/byanjiong/mailmerge/internal/history"
	"github.com/byanjiong/mailmerge/internal/logger"
	"github.com/byanjiong/mailmerge/internal/merge"
	"github.com/byanjiong/mailmerge/internal/record"
)

// TrackingConfig controls open tracking.
type TrackingConfig struct {
	Enabled bool
	BaseURL string
	// Marker is the substring that identifies an existing pixel in a body.
	// Defaults to BaseURL.
	Marker string
}

// Config holds the settings for one run. It is not modified by the run.
type Config struct {
	From string
	// DailyLimit caps the sends of one run. Zero or less means no cap.
	DailyLimit     int
	SendInterval   time.Duration
	SkipSent       bool
	DefaultSubject string
	DefaultBody    string
	Tracking       TrackingConfig
}

// Connector acquires the send capability for a run.
type Connector func(ctx context.Context) (email.Sender, error)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock sets the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithSleep replaces the pacing delay.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) { d.sleep = sleep }
}

// WithIDGenerator replaces the dispatch ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(d *Dispatcher) { d.newID = gen }
}

// WithEventSink receives every event as soon as it is emitted.
func WithEventSink(sink func(Event)) Option {
	return func(d *Dispatcher) { d.sink = sink }
}

// Dispatcher runs batches sequentially against one history store.
type Dispatcher struct {
	connect Connector
	store   history.Store
	log     *logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
	sink  func(Event)
}

// New creates a Dispatcher. A nil store disables dedup and history writes.
func New(connect Connector, store history.Store, log *logger.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	d := &Dispatcher{
		connect: connect,
		store:   store,
		log:     log.WithComponent("dispatch"),
		now:     time.Now,
		sleep:   sleepCtx,
		newID:   NewDispatchID,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the state of one Dispatch call.
type run struct {
	*Dispatcher
	cfg    Config
	log    *logger.Logger
	events []Event
	sender email.Sender
	sent   map[string]struct{}
	count  int
}

func (r *run) emit(ev Event) {
	r.events = append(r.events, ev)

	switch ev.Kind {
	case KindWarning:
		r.log.Warn().Msg(ev.Message)
	case KindError:
		r.log.Error().Msg(ev.Message)
	default:
		r.log.Info().Str("event", string(ev.Kind)).Msg(ev.Message)
	}

	if r.sink != nil {
		r.sink(ev)
	}
}

func (r *run) abort(ev Event) []Event {
	r.emit(ev)
	r.emit(finishf(FinishTerminated))
	return r.events
}

// Dispatch processes records in order and returns the events of the run.
// It stops at the daily limit, on authentication failure, or when ctx is
// done. Transport rejections of single messages do not stop the run.
func (d *Dispatcher) Dispatch(ctx context.Context, records []record.Raw, cfg Config) []Event {
	r := &run{
		Dispatcher: d,
		cfg:        cfg,
		log:        d.log.WithRunID(uuid.NewString()),
	}

	if len(records) == 0 {
		r.emit(warnf("No data provided to process."))
		r.emit(finishf(FinishEmpty))
		return r.events
	}

	sender, err := d.connect(ctx)
	if err != nil {
		return r.abort(errorf("Authentication failed: %v", err))
	}
	r.sender = sender

	r.sent = make(map[string]struct{})
	if cfg.SkipSent && d.store != nil {
		sent, err := d.store.LoadSentAddresses(ctx)
		if err != nil {
			return r.abort(errorf("Could not load send history: %v", err))
		}
		r.sent = sent
	}

	r.log.Info().
		Int("records", len(records)).
		Int("daily_limit", cfg.DailyLimit).
		Bool("skip_sent", cfg.SkipSent).
		Msg("dispatch started")

	for i, raw := range records {
		if err := ctx.Err(); err != nil {
			return r.abort(errorf("Process aborted: run cancelled: %v", err))
		}

		rec := record.Normalize(raw)
		if !HasDeliverableAddress(rec) {
			r.log.Debug().Int("row", i+1).Msg("skipping record without address")
			continue
		}

		primary := PrimaryAddress(rec)
		key := history.NormalizeAddress(primary)
		if cfg.SkipSent && key != "" {
			if _, done := r.sent[key]; done {
				r.emit(infof("Skipping %s: already sent.", primary))
				continue
			}
		}

		if cfg.DailyLimit > 0 && r.count >= cfg.DailyLimit {
			r.emit(warnf("Daily limit of %d reached.", cfg.DailyLimit))
			break
		}

		sent, err := r.process(ctx, rec, primary)
		if err != nil {
			return r.abort(errorf("Process aborted: %v", err))
		}
		if sent && cfg.SkipSent && key != "" {
			r.sent[key] = struct{}{}
		}
	}

	r.emit(finishf("Batch complete. Sent %d emails.", r.count))
	return r.events
}

// process sends one record and reports whether the message went out. A
// non-nil error aborts the run.
func (r *run) process(ctx context.Context, rec *record.Record, primary string) (bool, error) {
	id, ok := rec.Get(FieldDispatchID)
	if !ok || id == "" {
		id = r.newID()
		rec.Set(FieldDispatchID, id)
	}

	display := primary
	if display == "" {
		display = rec.First(FieldCC, FieldBCC)
	}
	r.emit(infof("Processing: %s (ID: %s)...", display, id))

	trackerURL := ""
	if r.cfg.Tracking.BaseURL != "" {
		trackerURL = TrackerURL(r.cfg.Tracking.BaseURL, id, primary)
		rec.Set(FieldTrackerURL, trackerURL)
	}

	subjectTmpl := rec.First(FieldSubject)
	if subjectTmpl == "" {
		subjectTmpl = r.cfg.DefaultSubject
	}
	bodyTmpl := rec.First(FieldBody)
	if bodyTmpl == "" {
		bodyTmpl = r.cfg.DefaultBody
	}

	fields := rec.Fields()
	subject := merge.Render(subjectTmpl, fields)
	body := merge.Render(bodyTmpl, fields)
	if missing := unfilled(fields, subjectTmpl, bodyTmpl); len(missing) > 0 {
		r.log.Debug().Str("dispatch_id", id).Strs("placeholders", missing).Msg("placeholders left unfilled")
	}

	if r.cfg.Tracking.Enabled && trackerURL != "" {
		marker := r.cfg.Tracking.Marker
		if marker == "" {
			marker = r.cfg.Tracking.BaseURL
		}
		body = InjectPixel(body, trackerURL, marker)
	}

	paths, warnings := ResolveAttachments(rec)
	for _, w := range warnings {
		r.emit(w)
	}

	msg := email.Message{
		From:        r.cfg.From,
		To:          primary,
		CC:          rec.Value(FieldCC),
		BCC:         rec.Value(FieldBCC),
		Subject:     subject,
		HTMLBody:    body,
		Attachments: paths,
	}
	env, err := email.Build(msg)
	if err != nil {
		r.emit(errorf("Failed to build message for %s: %v", display, err))
		return false, nil
	}
	for _, skipped := range env.Skipped {
		var ae *email.AttachmentError
		if errors.As(skipped, &ae) {
			r.emit(warnf("Attachment skipped (unreadable): %s: %v", ae.Path, ae.Err))
		}
	}

	if err := r.sender.Send(ctx, env); err != nil {
		switch {
		case ctx.Err() != nil:
			return false, fmt.Errorf("run cancelled: %w", ctx.Err())
		case errors.Is(err, email.ErrTransport):
			r.emit(errorf("Failed to send to %s: %v", display, err))
			return false, nil
		default:
			return false, fmt.Errorf("send to %s failed: %w", display, err)
		}
	}

	r.count++
	r.log.SendAudit(id, display, env.Attached)

	if r.store != nil {
		entry := history.Entry{
			SentAt:      r.now(),
			DispatchID:  id,
			To:          primary,
			CC:          msg.CC,
			BCC:         msg.BCC,
			Subject:     subject,
			Preview:     body,
			Attachments: env.Attached,
		}
		if err := r.store.Append(ctx, entry); err != nil {
			r.emit(warnf("Could not record %s in send history: %v", display, err))
		}
	}

	r.emit(infof("Sent to %s (ID: %s).", display, id))

	if err := r.sleep(ctx, r.cfg.SendInterval); err != nil {
		return true, fmt.Errorf("run cancelled: %w", err)
	}
	return true, nil
}

// unfilled lists the placeholder keys of the templates that fields cannot
// fill.
func unfilled(fields map[string]string, templates ...string) []string {
	var missing []string
	seen := make(map[string]struct{})
	for _, tmpl := range templates {
		for _, k := range merge.Keys(tmpl) {
			if _, ok := fields[k]; ok {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			missing = append(missing, k)
		}
	}
	return missing
}
