package service

import (
	"context"

	"github.com/HendryAvila/cwa/internal/store"
)

// AddDecision records an architectural decision and announces it.
func (svc *Services) AddDecision(ctx context.Context, project string, p store.CreateDecisionParams) (store.Decision, error) {
	decision, err := svc.Store.CreateDecision(ctx, project, p)
	if err != nil {
		return store.Decision{}, err
	}
	svc.publish(ctx, store.Event{
		Type: store.EventDecisionAdded, Project: project,
		EntityKind: "decision", EntityID: decision.ID,
	})
	return decision, nil
}

// ListDecisions lists decisions in creation order.
func (svc *Services) ListDecisions(ctx context.Context, project string) ([]store.Decision, error) {
	return svc.Store.ListDecisions(ctx, project)
}
