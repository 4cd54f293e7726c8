// Package inventory resolves the local machine and named groups to their
// records in the remote inventory.
//
// Every lookup is bounded to one row. When several records share a name the
// first one the server returns wins; no disambiguation is attempted.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"swisctl/pkg/models"
	"swisctl/pkg/swis"
)

// SWQL lookups. @name is bound as a query parameter.
const (
	NodeBySysNameQuery = "SELECT TOP 1 Uri, NodeID, Caption, SysName FROM Orion.Nodes WHERE SysName = @name"
	NodeByCaptionQuery = "SELECT TOP 1 Uri, NodeID, Caption, SysName FROM Orion.Nodes WHERE Caption = @name"
	GroupByNameQuery   = "SELECT TOP 1 ContainerID, Uri, Name FROM Orion.Container WHERE Name = @name"
)

// ErrNotFound means a lookup matched nothing (or could not be answered).
var ErrNotFound = errors.New("not found")

// Querier runs SWQL queries; *swis.Session satisfies it.
type Querier interface {
	Query(ctx context.Context, query string, params map[string]any) swis.Rows
}

// Mode selects which node field the local name is matched against.
type Mode int

const (
	// BySysName matches the SNMP/WMI reported system name.
	BySysName Mode = iota
	// ByCaption matches the display caption.
	ByCaption
)

func (m Mode) String() string {
	if m == ByCaption {
		return "Caption"
	}
	return "SysName"
}

func (m Mode) query() string {
	if m == ByCaption {
		return NodeByCaptionQuery
	}
	return NodeBySysNameQuery
}

// ResolveBySysName looks the host up by system name (alert suppression actions).
func ResolveBySysName(ctx context.Context, q Querier, hostName string) (models.Entity, error) {
	return Resolve(ctx, q, BySysName, hostName)
}

// ResolveByCaption looks the host up by caption (management state actions).
func ResolveByCaption(ctx context.Context, q Querier, hostName string) (models.Entity, error) {
	return Resolve(ctx, q, ByCaption, hostName)
}

// Resolve returns the first node whose mode field equals hostName.
func Resolve(ctx context.Context, q Querier, mode Mode, hostName string) (models.Entity, error) {
	var entity models.Entity
	if err := first(ctx, q, mode.query(), hostName, &entity); err != nil {
		return models.Entity{}, fmt.Errorf("node with %s %q: %w", mode, hostName, err)
	}
	if entity.URI == "" || entity.NodeID == 0 {
		return models.Entity{}, fmt.Errorf("node with %s %q: %w: row has no Uri/NodeID", mode, hostName, ErrNotFound)
	}
	return entity, nil
}

// ResolveGroup returns the container whose name is exactly name.
func ResolveGroup(ctx context.Context, q Querier, name string) (models.Group, error) {
	var group models.Group
	if err := first(ctx, q, GroupByNameQuery, name, &group); err != nil {
		return models.Group{}, fmt.Errorf("group %q: %w", name, err)
	}
	if group.ContainerID == 0 {
		return models.Group{}, fmt.Errorf("group %q: %w: row has no ContainerID", name, ErrNotFound)
	}
	return group, nil
}

func first(ctx context.Context, q Querier, query, name string, dest any) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrNotFound)
	}
	rows := q.Query(ctx, query, map[string]any{"name": name})
	if rows.Err != nil {
		return fmt.Errorf("%w: %w", ErrNotFound, rows.Err)
	}
	if rows.Empty() {
		return ErrNotFound
	}
	if err := rows.Decode(0, dest); err != nil {
		return fmt.Errorf("%w: decode row: %w", ErrNotFound, err)
	}
	return nil
}
