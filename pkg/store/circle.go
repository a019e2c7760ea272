package store

import (
	"context"

	"github.com/papercomputeco/chora/pkg/schema"
)

// InhabitedCircles returns the circle ids the entity inhabits.
func (s *Store) InhabitedCircles(ctx context.Context, entityID string) ([]string, error) {
	bonds, err := s.QueryBonds(ctx, BondFilter{Verb: "inhabits", FromID: entityID, Status: schema.BondActive})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(bonds))
	for _, b := range bonds {
		out = append(out, b.ToID)
	}
	return out, nil
}

// Inhabitants returns the entities bonded into a circle via inhabits.
func (s *Store) Inhabitants(ctx context.Context, circleID string) ([]*schema.Entity, error) {
	bonds, err := s.QueryBonds(ctx, BondFilter{Verb: "inhabits", ToID: circleID, Status: schema.BondActive})
	if err != nil {
		return nil, err
	}

	out := []*schema.Entity{}
	for _, b := range bonds {
		e, err := s.GetEntity(ctx, b.FromID)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// OwnerCircles returns the circles an asset belongs to.
func (s *Store) OwnerCircles(ctx context.Context, assetID string) ([]string, error) {
	bonds, err := s.QueryBonds(ctx, BondFilter{Verb: "belongs-to", FromID: assetID, Status: schema.BondActive})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(bonds))
	for _, b := range bonds {
		out = append(out, b.ToID)
	}
	return out, nil
}

// Assets returns the asset entities that belong to a circle.
func (s *Store) Assets(ctx context.Context, circleID string) ([]*schema.Entity, error) {
	bonds, err := s.QueryBonds(ctx, BondFilter{Verb: "belongs-to", ToID: circleID, Status: schema.BondActive})
	if err != nil {
		return nil, err
	}

	out := []*schema.Entity{}
	for _, b := range bonds {
		e, err := s.GetEntity(ctx, b.FromID)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
