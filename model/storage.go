package model

import "context"

// Storage is the external collaborator described in spec §1/§6: the SQL
// backend (SQLite/MySQL in the original system) is out of core scope. The
// core depends only on this interface, which it assumes is already
// thread-safe (spec §5, "Storage access is delegated").
type Storage interface {
	// GetObject returns the object for id, or ErrNoSuchObject.
	GetObject(ctx context.Context, id string) (*CdsObject, error)
	// GetContainer returns container-specific fields for id.
	GetContainer(ctx context.Context, id string) (*CdsContainer, error)
	// Children returns direct children of a container, ordered and paged.
	Children(ctx context.Context, containerID string, offset, count int) ([]*CdsObject, int, error)
	// AddObject inserts a new object and bumps ancestor UpdateIDs + SystemUpdateID.
	AddObject(ctx context.Context, obj *CdsObject) error
	// UpdateObject mutates an existing object and bumps UpdateIDs.
	UpdateObject(ctx context.Context, obj *CdsObject) error
	// RemoveObject deletes an object (and its subtree if a container) and bumps UpdateIDs.
	RemoveObject(ctx context.Context, id string) error
	// SystemUpdateID returns the monotonic, server-wide update counter.
	SystemUpdateID(ctx context.Context) uint32

	// SavePlayStatus persists a ClientStatusDetail keyed by (group, itemId).
	SavePlayStatus(ctx context.Context, status *ClientStatusDetail) error
	// GetPlayStatus loads the ClientStatusDetail for (group, itemId), if any.
	GetPlayStatus(ctx context.Context, group, itemID string) (*ClientStatusDetail, error)

	// SearchObjects runs a lowered SQL fragment (see core/search) and returns
	// matching objects, total count.
	SearchObjects(ctx context.Context, containerID, whereSQL string, args []any, orderBySQL string, offset, count int) ([]*CdsObject, int, error)
}

// Sentinel errors surfaced at the UPnP/HTTP boundary per spec §7.
type notFoundError string

func (e notFoundError) Error() string { return string(e) }

const (
	ErrNoSuchObject   notFoundError = "no such object"
	ErrNoSuchResource notFoundError = "no such resource"
)
