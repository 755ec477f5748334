package command

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethanwacker/batcomputer/internal/observe"
)

// timeFormat renders a long date with a short time, e.g.
// "Friday, August 28, 2026 at 3:04 PM".
const timeFormat = "Monday, January 2, 2006 at 3:04 PM"

// Devices is the device-state registry the dispatcher writes to. Satisfied
// by *homeauto.Registry.
type Devices interface {
	// Set stores the state for a device, creating it if absent.
	Set(name, state string)

	// List returns all devices as name-sorted "name: state" pairs.
	List() []string
}

// WeatherService looks up current conditions for a city. Satisfied by
// *weather.Client. Any failure is reported to the user as a fixed spoken
// phrase; the dispatcher never retries.
type WeatherService interface {
	Current(ctx context.Context, city string) (description string, tempC float64, err error)
}

// Dispatcher executes parsed Commands. It owns no mutable state of its own:
// side effects flow through the Devices registry, and the returned response
// text is the only other output. Safe for concurrent use, though the session
// loop serializes calls in practice.
type Dispatcher struct {
	devices Devices
	weather WeatherService
	now     func() time.Time
	pick    func([]string) string
	metrics *observe.Metrics
}

// DispatcherOption configures a [Dispatcher].
type DispatcherOption func(*Dispatcher)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// WithResponsePicker overrides random response selection. Used by tests.
func WithResponsePicker(pick func([]string) string) DispatcherOption {
	return func(d *Dispatcher) { d.pick = pick }
}

// WithMetrics records per-command dispatch counters on m.
func WithMetrics(m *observe.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a Dispatcher writing to devices and querying weather.
// weather may be nil, in which case weather commands answer with the
// service-error phrase.
func NewDispatcher(devices Devices, weather WeatherService, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		devices: devices,
		weather: weather,
		now:     time.Now,
		pick:    RandomResponse,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch executes cmd and returns the response text to be spoken.
//
// When cmd is sensitive and authenticated is false, Dispatch returns the
// authentication challenge and performs no side effect; the caller is
// responsible for running the voice-authentication exchange and flipping the
// flag before the command is retried. Nothing else ever grants access.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command, authenticated bool) string {
	ctx, span := otel.Tracer("batcomputer/command").Start(ctx, "dispatch",
		trace.WithAttributes(attribute.String("command", string(cmd.Kind))))
	defer span.End()

	if d.metrics != nil {
		start := time.Now()
		defer func() {
			d.metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds())
		}()
	}

	if cmd.Sensitive() && !authenticated {
		slog.Info("sensitive command blocked pending authentication", "kind", cmd.Kind)
		d.count(ctx, cmd.Kind, "challenged")
		return ChallengePhrase
	}

	response := d.execute(ctx, cmd)
	d.count(ctx, cmd.Kind, "executed")
	return response
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command) string {
	switch cmd.Kind {
	case KindTime:
		return "It is " + d.now().Format(timeFormat)

	case KindWeather:
		return d.describeWeather(ctx, cmd.City)

	case KindLightsOn:
		return d.setDevice("lights", "ON")
	case KindLightsOff:
		return d.setDevice("lights", "OFF")
	case KindSecurityArm:
		return d.setDevice("security", "ARMED")
	case KindSecurityDisarm:
		return d.setDevice("security", "DISARMED")

	case KindBatcaveStatus:
		return strings.Join(BatcaveStatus, "\n")

	case KindBatmobileStart:
		return BatmobileStarted
	case KindBatmobileStatus:
		return BatmobileReport

	case KindLocateVillain:
		if cmd.Villain == "" {
			return NoTrackingData
		}
		return VillainInfo(cmd.Villain)

	case KindSystemStatus:
		lines := d.devices.List()
		sort.Strings(lines)
		return strings.Join(lines, "\n")

	case KindSystemShutdown:
		// Permanently blocked; there is no authorization path that allows it.
		return ShutdownRefusal

	case KindGreeting:
		return d.pick(Greetings)
	case KindFarewell:
		return Farewell
	case KindThanks:
		return Thanks
	case KindHelp:
		return HelpText

	default:
		return Unrecognized
	}
}

// setDevice writes the new state and formats the confirmation phrase.
func (d *Dispatcher) setDevice(name, state string) string {
	d.devices.Set(name, state)
	return fmt.Sprintf("%s is now %s", name, state)
}

// describeWeather resolves a weather command. An empty city asks the user to
// name one rather than calling the service.
func (d *Dispatcher) describeWeather(ctx context.Context, city string) string {
	if city == "" {
		return WeatherNeedsCity
	}
	if d.weather == nil {
		return WeatherUnavailable
	}
	desc, temp, err := d.weather.Current(ctx, city)
	if err != nil {
		slog.Warn("weather lookup failed", "city", city, "err", err)
		return WeatherUnavailable
	}
	return fmt.Sprintf("Current weather in %s: %s, temperature: %d°C", city, desc, int(temp))
}

func (d *Dispatcher) count(ctx context.Context, kind Kind, status string) {
	if d.metrics != nil {
		d.metrics.RecordDispatch(ctx, string(kind), status)
	}
}
