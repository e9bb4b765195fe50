// Package ingress routes engine feed events to the rest of the app.
// Events arrive as tagged kind/payload pairs; each kind is decoded at
// this boundary and handed to the sink as a normalized record, so
// nothing downstream touches raw payloads.
package ingress

import (
	"log"
	"sync"

	"github.com/brandlens/brandlens/internal/backend"
	"github.com/brandlens/brandlens/internal/session"
	"github.com/brandlens/brandlens/internal/types"
)

// Sink receives normalized engine events. Calls arrive on the feed's
// read loop and must not block.
type Sink interface {
	ScanStarted(backend.ScanStarted)
	ScanProgress(session.Progress)
	ScanCompleted(types.ScanSummary)
	ScanFailed(message string, cancelled bool)
	Countdown(seconds int)
	PlatformAuthChanged(backend.AuthChange)
	SignedIn(backend.AuthUser)
	DiscoveryProgress(types.DiscoveryView)
}

// Dispatcher decodes tagged feed events and forwards them to a sink.
type Dispatcher struct {
	sink    Sink
	install sync.Once
}

func New(sink Sink) *Dispatcher {
	return &Dispatcher{sink: sink}
}

// EnsureInstalled registers Dispatch with the feed exactly once.
// Desktop webview reloads re-run app wiring; without the guard each
// reload would stack another handler and every event would be applied
// twice.
func (d *Dispatcher) EnsureInstalled(register func(backend.Handler)) {
	d.install.Do(func() {
		register(d.Dispatch)
	})
}

// Dispatch decodes one event and forwards it. Malformed payloads are
// logged and dropped; an unknown kind is ignored so new engine event
// types don't break older app builds.
func (d *Dispatcher) Dispatch(ev backend.Event) {
	switch ev.Kind {
	case backend.EventScanStarted:
		started, err := backend.ParseStarted(ev.Payload)
		if err != nil {
			log.Printf("ingress: bad %s payload: %v", ev.Kind, err)
			return
		}
		d.sink.ScanStarted(started)

	case backend.EventScanProgress:
		progress, err := backend.ParseProgress(ev.Payload)
		if err != nil {
			log.Printf("ingress: bad %s payload: %v", ev.Kind, err)
			return
		}
		d.sink.ScanProgress(progress)

	case backend.EventScanComplete:
		summary, err := backend.ParseSummary(ev.Payload)
		if err != nil {
			log.Printf("ingress: bad %s payload: %v", ev.Kind, err)
			return
		}
		d.sink.ScanCompleted(summary)

	case backend.EventScanError:
		message := backend.ParseErrorMessage(ev.Payload)
		d.sink.ScanFailed(message, backend.IsCancellation(message))

	case backend.EventScanCountdown:
		seconds, ok := backend.ParseCountdown(ev.Payload)
		if !ok {
			log.Printf("ingress: bad %s payload: %q", ev.Kind, ev.Payload)
			return
		}
		d.sink.Countdown(seconds)

	case backend.EventPlatformAuth:
		change, err := backend.ParseAuthChange(ev.Payload)
		if err != nil {
			log.Printf("ingress: bad %s payload: %v", ev.Kind, err)
			return
		}
		d.sink.PlatformAuthChanged(change)

	case backend.EventAuthSuccess:
		user, err := backend.ParseAuthUser(ev.Payload)
		if err != nil {
			log.Printf("ingress: bad %s payload: %v", ev.Kind, err)
			return
		}
		d.sink.SignedIn(user)

	case backend.EventDiscoveryProgress:
		view, err := backend.ParseDiscoveryProgress(ev.Payload)
		if err != nil {
			log.Printf("ingress: bad %s payload: %v", ev.Kind, err)
			return
		}
		d.sink.DiscoveryProgress(view)
	}
}
