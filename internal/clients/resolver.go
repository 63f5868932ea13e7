// Package clients resolves the client entity for revenue-bearing
// activities. Resolution is lookup-only: it never creates entities,
// and an activity whose client cannot be determined is left alone.
package clients

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/stewardhq/steward/internal/storage"
	"github.com/stewardhq/steward/internal/types"
)

// Resolution method names, recorded per resolved activity
const (
	MethodExplicitName = "explicit_name"
	MethodClientMember = "client_member"
	MethodOrgMember    = "org_member"
)

// metadataClientKey is the metadata field holding a client name supplied
// at ingestion time, before entity linking.
const metadataClientKey = "client"

// Resolver resolves client entities for activities
type Resolver struct {
	store storage.Storage
}

// NewResolver creates a client resolver
func NewResolver(store storage.Storage) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	return &Resolver{store: store}, nil
}

// ResolveByName finds the entity a client name refers to. Exact matches
// (case-insensitive) win over partial ones; among several candidates an
// organization is preferred. The activity's own owner is never a valid
// client, so owner matches are skipped.
func (r *Resolver) ResolveByName(ctx context.Context, activity *types.Activity, name string) (*types.Entity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.NewValidationError("client name cannot be empty")
	}

	candidates, err := r.store.FindEntitiesByName(ctx, name, "", true, 10)
	if err != nil {
		return nil, fmt.Errorf("exact entity lookup: %w", err)
	}
	if len(candidates) == 0 {
		candidates, err = r.store.FindEntitiesByName(ctx, name, "", false, 10)
		if err != nil {
			return nil, fmt.Errorf("partial entity lookup: %w", err)
		}
	}

	var fallback *types.Entity
	for _, c := range candidates {
		if c.ID == activity.OwnerEntityID {
			continue
		}
		if c.Kind == types.EntityOrganization {
			return c, nil
		}
		if fallback == nil {
			fallback = c
		}
	}
	return fallback, nil
}

// ResolveFromMembers infers the client from the activity's membership:
// an explicit client-role member wins, then the first organization member
// that is not the owner. Returns nil when the membership gives no signal.
func (r *Resolver) ResolveFromMembers(ctx context.Context, activity *types.Activity) (*types.Entity, string, error) {
	members, err := r.store.GetMembers(ctx, activity.ID)
	if err != nil {
		return nil, "", fmt.Errorf("loading members: %w", err)
	}

	for _, m := range members {
		if m.Role != types.RoleClient {
			continue
		}
		e, err := r.store.GetEntity(ctx, m.EntityID)
		if err != nil {
			return nil, "", fmt.Errorf("loading client member %s: %w", m.EntityID, err)
		}
		return e, MethodClientMember, nil
	}

	for _, m := range members {
		if m.EntityID == activity.OwnerEntityID {
			continue
		}
		e, err := r.store.GetEntity(ctx, m.EntityID)
		if err != nil {
			return nil, "", fmt.Errorf("loading member %s: %w", m.EntityID, err)
		}
		if e.Kind == types.EntityOrganization {
			return e, MethodOrgMember, nil
		}
	}
	return nil, "", nil
}

// Resolve determines the client for one activity without writing anything.
// An ingestion-supplied client name in metadata takes precedence over
// membership inference.
func (r *Resolver) Resolve(ctx context.Context, activity *types.Activity) (*types.Entity, string, error) {
	if name := activity.Metadata[metadataClientKey]; name != "" {
		e, err := r.ResolveByName(ctx, activity, name)
		if err != nil {
			return nil, "", err
		}
		if e != nil {
			return e, MethodExplicitName, nil
		}
		// An explicit name that matches nothing falls through to the
		// membership strategies rather than failing the activity.
	}
	return r.ResolveFromMembers(ctx, activity)
}

// Assignment records one resolved client link
type Assignment struct {
	ActivityID   string `json:"activity_id"`
	ActivityName string `json:"activity_name"`
	ClientID     string `json:"client_id"`
	ClientName   string `json:"client_name"`
	Method       string `json:"method"`
}

// Result summarizes a batch auto-resolution run
type Result struct {
	Scanned    int               `json:"scanned"`
	Assigned   []Assignment      `json:"assigned"`
	Unresolved int               `json:"unresolved"`
	DryRun     bool              `json:"dry_run"`
	Errors     []types.ItemError `json:"errors,omitempty"`
}

// AutoResolveClients scans projects and businesses with no client link
// and fills in the ones it can resolve. With dryRun set, assignments are
// reported but not written.
func (r *Resolver) AutoResolveClients(ctx context.Context, dryRun bool) (*Result, error) {
	activities, err := r.store.ListActivities(ctx, types.ActivityFilter{
		Types:         []types.ActivityType{types.TypeProject, types.TypeBusiness},
		MissingClient: true,
	})
	if err != nil {
		return nil, fmt.Errorf("listing activities missing a client: %w", err)
	}

	result := &Result{Scanned: len(activities), DryRun: dryRun}
	for _, a := range activities {
		client, method, err := r.Resolve(ctx, a)
		if err != nil {
			result.Errors = append(result.Errors, types.ItemError{ID: a.ID, Err: err.Error()})
			continue
		}
		if client == nil {
			result.Unresolved++
			continue
		}
		if !dryRun {
			err := r.store.UpdateActivity(ctx, a.ID, map[string]interface{}{
				"client_entity_id": client.ID,
			})
			if err != nil {
				result.Errors = append(result.Errors, types.ItemError{ID: a.ID, Err: err.Error()})
				continue
			}
		}
		result.Assigned = append(result.Assigned, Assignment{
			ActivityID:   a.ID,
			ActivityName: a.Name,
			ClientID:     client.ID,
			ClientName:   client.Name,
			Method:       method,
		})
		log.Printf("[CLIENTS] %q -> %s via %s (dry-run=%v)", a.Name, client.Name, method, dryRun)
	}
	return result, nil
}
