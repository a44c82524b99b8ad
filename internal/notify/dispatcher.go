package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
	"github.com/sethvargo/go-retry"
)

// PrefsStore defines the store operations the dispatcher needs.
// Implemented by SQLiteStore.
type PrefsStore interface {
	GetPreferences(ctx context.Context, userID string) (*types.NotificationPrefs, error)
	RecordNotificationAttempt(ctx context.Context, attempt types.NotificationAttempt) error
}

// Recorder receives dispatch observations.
type Recorder interface {
	NudgeDelivered(provider, channel string)
	NotificationAttempt(provider, channel, outcome string)
	NotificationLatency(provider, channel string, d time.Duration)
}

// Dispatcher resolves channels from user preferences and delivers through
// registered providers. It never returns an error to its caller: every
// failure ends up in logs, metrics, and the audit table instead.
type Dispatcher struct {
	registry    *Registry
	store       PrefsStore
	metrics     Recorder
	maxAttempts int
	retryBase   time.Duration
	now         func() time.Time
}

// NewDispatcher creates a dispatcher. maxAttempts counts the first try;
// retryBase is the first backoff delay, doubling per attempt.
func NewDispatcher(registry *Registry, store PrefsStore, metrics Recorder, maxAttempts int, retryBase time.Duration) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if retryBase <= 0 {
		retryBase = 2 * time.Second
	}
	return &Dispatcher{
		registry:    registry,
		store:       store,
		metrics:     metrics,
		maxAttempts: maxAttempts,
		retryBase:   retryBase,
		now:         time.Now,
	}
}

// Send delivers a notification to the user over every enabled channel.
// Returns true when at least one channel delivered. Quiet hours suppress
// the whole call without invoking any provider.
func (d *Dispatcher) Send(ctx context.Context, user types.User, subject, message string) bool {
	prefs, err := d.store.GetPreferences(ctx, user.ID)
	if err != nil {
		slog.Warn("preferences unavailable, using defaults",
			"component", "notify",
			"user_id", user.ID,
			"error", err,
		)
		defaults := types.DefaultPrefs(user.ID)
		prefs = &defaults
	}

	if InQuietHours(*prefs, d.now().UTC().Hour()) {
		slog.Info("notification suppressed by quiet hours",
			"component", "notify",
			"user_id", user.ID,
			"subject", subject,
			"quiet_from", prefs.QuietFromHour,
			"quiet_to", prefs.QuietToHour,
		)
		d.audit(ctx, user.ID, subject, "-", "-", types.OutcomeSuppressed, "quiet hours")
		d.metrics.NotificationAttempt("-", "-", string(types.OutcomeSuppressed))
		return false
	}

	var delivered bool
	for _, ch := range enabledChannels(*prefs) {
		if d.sendChannel(ctx, ch, user, subject, message) {
			delivered = true
		}
	}
	return delivered
}

// sendChannel attempts one channel with retry. Channel failures are
// contained here; they never abort the overall Send.
func (d *Dispatcher) sendChannel(ctx context.Context, ch Channel, user types.User, subject, message string) (ok bool) {
	provider := d.registry.Get(ch)
	if provider == nil {
		slog.Warn("no provider registered for channel",
			"component", "notify",
			"channel", string(ch),
			"user_id", user.ID,
		)
		return false
	}

	// A misbehaving provider must not take down the dispatch loop.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("provider panic",
				"component", "notify",
				"provider", provider.Name(),
				"channel", string(ch),
				"user_id", user.ID,
				"panic", fmt.Sprint(r),
			)
			ok = false
		}
	}()

	start := d.now()
	backoff := retry.WithMaxRetries(uint64(d.maxAttempts-1), retry.NewExponential(d.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		sendErr := provider.Send(ctx, user, subject, message)
		if sendErr == nil {
			return nil
		}
		if errors.Is(sendErr, ErrPermanent) || ctx.Err() != nil {
			return sendErr
		}
		slog.Debug("transient channel failure, will retry",
			"component", "notify",
			"provider", provider.Name(),
			"channel", string(ch),
			"user_id", user.ID,
			"error", sendErr,
		)
		return retry.RetryableError(sendErr)
	})
	latency := d.now().Sub(start)
	d.metrics.NotificationLatency(provider.Name(), string(ch), latency)

	if err != nil {
		slog.Error("channel delivery failed",
			"component", "notify",
			"provider", provider.Name(),
			"channel", string(ch),
			"user_id", user.ID,
			"error", err,
		)
		d.audit(ctx, user.ID, subject, string(ch), provider.Name(), types.OutcomeFailed, err.Error())
		d.metrics.NotificationAttempt(provider.Name(), string(ch), string(types.OutcomeFailed))
		return false
	}

	slog.Info("notification delivered",
		"component", "notify",
		"provider", provider.Name(),
		"channel", string(ch),
		"user_id", user.ID,
		"latency_ms", latency.Milliseconds(),
	)
	d.audit(ctx, user.ID, subject, string(ch), provider.Name(), types.OutcomeDelivered, "")
	d.metrics.NotificationAttempt(provider.Name(), string(ch), string(types.OutcomeDelivered))
	d.metrics.NudgeDelivered(provider.Name(), string(ch))
	return true
}

// audit writes the dispatch decision; a failed audit write is logged and
// swallowed so delivery results still stand.
func (d *Dispatcher) audit(ctx context.Context, userID, subject, channel, provider string, outcome types.NotificationOutcome, detail string) {
	attempt := types.NotificationAttempt{
		UserID:      userID,
		Subject:     subject,
		Channel:     channel,
		Provider:    provider,
		Outcome:     outcome,
		Detail:      detail,
		AttemptedAt: d.now().UTC(),
	}
	if err := d.store.RecordNotificationAttempt(ctx, attempt); err != nil {
		slog.Warn("audit write failed",
			"component", "notify",
			"user_id", userID,
			"error", err,
		)
	}
}

// enabledChannels returns the channels to attempt, email first.
func enabledChannels(prefs types.NotificationPrefs) []Channel {
	var channels []Channel
	if prefs.UseEmail {
		channels = append(channels, ChannelEmail)
	}
	if prefs.UseSMS {
		channels = append(channels, ChannelSMS)
	}
	return channels
}

// InQuietHours reports whether hour falls in the [from, to) window,
// wrapping midnight when from > to. A degenerate from == to window never
// suppresses.
func InQuietHours(prefs types.NotificationPrefs, hour int) bool {
	from, to := prefs.QuietFromHour, prefs.QuietToHour
	if from == to {
		return false
	}
	if from < to {
		return hour >= from && hour < to
	}
	return hour >= from || hour < to
}
