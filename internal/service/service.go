// Package service is the shared service layer behind both protocol
// surfaces. The MCP dispatcher and the HTTP facade forward here; every
// committed write publishes a typed event on the project bus so the
// websocket broadcaster and the graph projector stay current.
//
// Publish failures never roll back primary writes — the derived consumers
// reconcile by rebuild. A failed publish is only logged; the caller's
// result carries no warning about it.
package service

import (
	"context"
	"log"

	"github.com/HendryAvila/cwa/internal/kanban"
	"github.com/HendryAvila/cwa/internal/memory"
	"github.com/HendryAvila/cwa/internal/store"
)

// Services bundles the write paths shared by all surfaces.
type Services struct {
	Store  *store.Store
	Board  *kanban.Machine
	Memory *memory.Service
}

// New wires the service layer.
func New(s *store.Store, board *kanban.Machine, mem *memory.Service) *Services {
	return &Services{Store: s, Board: board, Memory: mem}
}

// publish emits an event, logging instead of failing: the primary write
// already committed.
func (svc *Services) publish(ctx context.Context, ev store.Event) {
	if err := svc.Store.Publish(ctx, ev); err != nil {
		log.Printf("WARNING: publishing %s: %v", ev.Type, err)
	}
}
