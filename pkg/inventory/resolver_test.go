package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"swisctl/pkg/swis"
)

// fakeQuerier answers every query with canned rows and records what it saw.
type fakeQuerier struct {
	rows    []string
	err     error
	queries []string
	params  []map[string]any
}

func (f *fakeQuerier) Query(_ context.Context, query string, params map[string]any) swis.Rows {
	f.queries = append(f.queries, query)
	f.params = append(f.params, params)
	if f.err != nil {
		return swis.Rows{Err: f.err}
	}
	results := make([]json.RawMessage, len(f.rows))
	for i, row := range f.rows {
		results[i] = json.RawMessage(row)
	}
	return swis.Rows{Results: results}
}

func TestResolve_FirstRowWins(t *testing.T) {
	q := &fakeQuerier{rows: []string{
		`{"Uri":"swis://orion/Orion/Orion.Nodes/NodeID=7","NodeID":7,"Caption":"web01","SysName":"web01"}`,
		`{"Uri":"swis://orion/Orion/Orion.Nodes/NodeID=9","NodeID":9,"Caption":"web01","SysName":"web01"}`,
	}}

	entity, err := ResolveBySysName(context.Background(), q, "web01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entity.NodeID != 7 {
		t.Errorf("expected first row (NodeID 7), got %d", entity.NodeID)
	}
	if entity.URI != "swis://orion/Orion/Orion.Nodes/NodeID=7" {
		t.Errorf("unexpected URI %q", entity.URI)
	}
}

func TestResolve_ModesUseDistinctFields(t *testing.T) {
	row := `{"Uri":"swis://orion/Orion/Orion.Nodes/NodeID=7","NodeID":7}`
	tests := []struct {
		name    string
		resolve func(context.Context, Querier, string) error
		query   string
	}{
		{
			name: "sys name",
			resolve: func(ctx context.Context, q Querier, host string) error {
				_, err := ResolveBySysName(ctx, q, host)
				return err
			},
			query: NodeBySysNameQuery,
		},
		{
			name: "caption",
			resolve: func(ctx context.Context, q Querier, host string) error {
				_, err := ResolveByCaption(ctx, q, host)
				return err
			},
			query: NodeByCaptionQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{rows: []string{row}}
			if err := tt.resolve(context.Background(), q, "web01"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(q.queries) != 1 || q.queries[0] != tt.query {
				t.Errorf("expected query %q, got %v", tt.query, q.queries)
			}
			if q.params[0]["name"] != "web01" {
				t.Errorf("expected @name=web01, got %v", q.params[0])
			}
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	tests := []struct {
		name string
		q    *fakeQuerier
		host string
	}{
		{"zero rows", &fakeQuerier{}, "web01"},
		{"transport fault", &fakeQuerier{err: errors.New("connection refused")}, "web01"},
		{"row without identity", &fakeQuerier{rows: []string{`{"Caption":"web01"}`}}, "web01"},
		{"undecodable row", &fakeQuerier{rows: []string{`[1,2]`}}, "web01"},
		{"empty host", &fakeQuerier{rows: []string{`{"Uri":"swis://x","NodeID":1}`}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveByCaption(context.Background(), tt.q, tt.host)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestResolveGroup(t *testing.T) {
	q := &fakeQuerier{rows: []string{`{"ContainerID":12,"Uri":"swis://orion/Orion/Orion.Container/ContainerID=12","Name":"Linux Servers"}`}}

	group, err := ResolveGroup(context.Background(), q, "Linux Servers")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if group.ContainerID != 12 || group.Name != "Linux Servers" {
		t.Errorf("unexpected group %+v", group)
	}
	if q.queries[0] != GroupByNameQuery {
		t.Errorf("expected group query, got %q", q.queries[0])
	}

	if _, err := ResolveGroup(context.Background(), &fakeQuerier{}, "Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalHostname(t *testing.T) {
	tests := []struct {
		override string
		short    bool
		want     string
	}{
		{"web01.corp.local", false, "web01.corp.local"},
		{"web01.corp.local", true, "web01"},
		{" web01 ", false, "web01"},
	}

	for _, tt := range tests {
		t.Run(tt.override, func(t *testing.T) {
			got, err := LocalHostname(tt.override, tt.short)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if _, err := LocalHostname(".corp.local", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty short name, got %v", err)
	}

	osName, err := LocalHostname("", false)
	if err != nil {
		t.Fatalf("os host name: %v", err)
	}
	if osName == "" {
		t.Error("expected a non-empty OS host name")
	}
}
