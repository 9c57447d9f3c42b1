package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/wcscanner/server/internal/rig"
	"github.com/wcscanner/server/internal/session"
)

// Delivery reports the outcome of one fan-out.
type Delivery struct {
	Delivered int
	Failed    []*session.Session
}

// Broadcaster builds state snapshots and point events and sends them to every
// registered session.
type Broadcaster struct {
	registry *session.Registry
	projects rig.Projects
	system   rig.SystemInfo
	interval time.Duration
}

// NewBroadcaster returns a broadcaster over registry. A positive
// refreshInterval makes Run push a fresh snapshot periodically.
func NewBroadcaster(registry *session.Registry, projects rig.Projects, system rig.SystemInfo, refreshInterval time.Duration) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		projects: projects,
		system:   system,
		interval: refreshInterval,
	}
}

// Snapshot assembles the current state_data message.
func (b *Broadcaster) Snapshot(ctx context.Context) (StateData, error) {
	projects, err := b.projects.List(ctx)
	if err != nil {
		return StateData{}, err
	}
	du, err := b.system.DiskUsage(ctx)
	if err != nil {
		log.Printf("disk usage unavailable: %v", err)
	}
	return StateData{
		Type:          MsgStateData,
		ProjectData:   nonNil(projects),
		DiskUsageData: du,
	}, nil
}

// BroadcastState sends a fresh snapshot to every session. With no sessions
// registered it does nothing.
func (b *Broadcaster) BroadcastState(ctx context.Context) (Delivery, error) {
	members := b.registry.Members()
	if len(members) == 0 {
		return Delivery{}, nil
	}

	snap, err := b.Snapshot(ctx)
	if err != nil {
		return Delivery{}, fmt.Errorf("building snapshot: %w", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return Delivery{}, fmt.Errorf("marshaling snapshot: %w", err)
	}
	return b.fanOut(members, data), nil
}

// BroadcastEvent sends msg to every session.
func (b *Broadcaster) BroadcastEvent(msg any) (Delivery, error) {
	members := b.registry.Members()
	if len(members) == 0 {
		return Delivery{}, nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return Delivery{}, fmt.Errorf("marshaling event: %w", err)
	}
	return b.fanOut(members, data), nil
}

// fanOut never stops early. A session that cannot take the message is
// closed; its connection handler then unregisters it.
func (b *Broadcaster) fanOut(members []*session.Session, data []byte) Delivery {
	var d Delivery
	for _, s := range members {
		if err := s.Send(data); err != nil {
			log.Printf("broadcast to %s failed: %v", s.RemoteAddr, err)
			s.Close()
			d.Failed = append(d.Failed, s)
			continue
		}
		d.Delivered++
	}
	return d
}

// Reply sends msg to a single session.
func Reply(s *session.Session, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling reply: %w", err)
	}
	if err := s.Send(data); err != nil {
		s.Close()
		return err
	}
	return nil
}

// Run refreshes all clients on the configured interval until ctx is done.
// It returns immediately when no interval is configured.
func (b *Broadcaster) Run(ctx context.Context) {
	if b.interval <= 0 {
		return
	}
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.BroadcastState(ctx); err != nil {
				log.Printf("periodic snapshot: %v", err)
			}
		}
	}
}
