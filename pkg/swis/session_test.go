package swis_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"swisctl/pkg/models"
	"swisctl/pkg/swis"
	"swisctl/pkg/swis/swistest"
)

var testCred = models.Credential{Username: "svc-orion", Password: "P@ssw0rd!"}

func openSession(t *testing.T, server *swistest.Server, cred models.Credential) *swis.Session {
	t.Helper()
	session, err := swis.Open(server.URL, cred)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(session.Close)
	return session
}

func TestOpen_Endpoint(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"orion01", "https://orion01:17778" + swis.BasePath},
		{"orion01.corp.local:443", "https://orion01.corp.local:443" + swis.BasePath},
		{"10.0.0.5", "https://10.0.0.5:17778" + swis.BasePath},
		{"::1", "https://[::1]:17778" + swis.BasePath},
		{"http://127.0.0.1:8080", "http://127.0.0.1:8080" + swis.BasePath},
		{"https://orion01:17778/custom/root/", "https://orion01:17778/custom/root"},
		{"  orion01  ", "https://orion01:17778" + swis.BasePath},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			session, err := swis.Open(tt.address, testCred)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if got := session.BaseURL(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestOpen_Failures(t *testing.T) {
	tests := []struct {
		name    string
		address string
		cred    models.Credential
	}{
		{"empty address", "", testCred},
		{"unsupported scheme", "ftp://orion01", testCred},
		{"no host", "https://", testCred},
		{"no username", "orion01", models.Credential{Password: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := swis.Open(tt.address, tt.cred)
			if !errors.Is(err, swis.ErrConnection) {
				t.Errorf("expected ErrConnection, got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("probe returns a row", func(t *testing.T) {
		server := swistest.NewServer(testCred.Username, testCred.Password)
		defer server.Close()
		server.SetRows(swis.ProbeQuery, map[string]any{"NodeID": 1})

		if !openSession(t, server, testCred).Validate(context.Background()) {
			t.Error("expected session to validate")
		}
	})

	t.Run("probe returns zero rows", func(t *testing.T) {
		server := swistest.NewServer(testCred.Username, testCred.Password)
		defer server.Close()

		if openSession(t, server, testCred).Validate(context.Background()) {
			t.Error("expected validation to fail on zero rows")
		}
		if calls := server.Calls(); len(calls) != 1 || calls[0].Query != swis.ProbeQuery {
			t.Errorf("expected exactly the probe query, got %+v", calls)
		}
	})

	t.Run("wrong credentials", func(t *testing.T) {
		server := swistest.NewServer(testCred.Username, testCred.Password)
		defer server.Close()
		server.SetRows(swis.ProbeQuery, map[string]any{"NodeID": 1})

		wrong := models.Credential{Username: testCred.Username, Password: "nope"}
		if openSession(t, server, wrong).Validate(context.Background()) {
			t.Error("expected validation to fail with wrong password")
		}
	})

	t.Run("server unreachable", func(t *testing.T) {
		server := swistest.NewServer(testCred.Username, testCred.Password)
		session := openSession(t, server, testCred)
		server.Close()

		if session.Validate(context.Background()) {
			t.Error("expected validation to fail when server is down")
		}
	})
}

func TestQuery_SendsParameters(t *testing.T) {
	server := swistest.NewServer(testCred.Username, testCred.Password)
	defer server.Close()

	query := "SELECT TOP 1 Uri FROM Orion.Nodes WHERE SysName = @name"
	server.SetRows(query,
		map[string]any{"Uri": "swis://orion/Orion/Orion.Nodes/NodeID=1"},
		map[string]any{"Uri": "swis://orion/Orion/Orion.Nodes/NodeID=2"},
	)

	rows := openSession(t, server, testCred).Query(context.Background(), query, map[string]any{"name": "web01"})
	if rows.Err != nil {
		t.Fatalf("unexpected error: %v", rows.Err)
	}
	if rows.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", rows.Len())
	}

	var first struct{ Uri string }
	if err := rows.Decode(0, &first); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if first.Uri != "swis://orion/Orion/Orion.Nodes/NodeID=1" {
		t.Errorf("unexpected first row %q", first.Uri)
	}
	if err := rows.Decode(5, &first); err == nil {
		t.Error("expected out of range error")
	}

	calls := server.Calls()
	if len(calls) != 1 || calls[0].Params["name"] != "web01" {
		t.Errorf("expected name parameter web01, got %+v", calls)
	}
}

func TestInvoke(t *testing.T) {
	server := swistest.NewServer(testCred.Username, testCred.Password)
	defer server.Close()
	session := openSession(t, server, testCred)
	ctx := context.Background()

	server.SetReply("Orion.Nodes", "PollNow", true)
	reply := session.Invoke(ctx, "Orion.Nodes", "PollNow", "N:42")
	if !reply.OK() || strings.TrimSpace(string(reply.Body)) != "true" {
		t.Fatalf("expected a true reply, got %+v", reply)
	}
	calls := server.Invocations("Orion.Nodes", "PollNow")
	if len(calls) != 1 || len(calls[0].Args) != 1 || calls[0].Args[0] != "N:42" {
		t.Errorf("unexpected invocation %+v", calls)
	}

	// void verbs answer 200 with null
	reply = session.Invoke(ctx, "Orion.AlertSuppression", "ResumeAlerts", []string{"swis://x"})
	if !reply.OK() || strings.TrimSpace(string(reply.Body)) != "null" {
		t.Errorf("expected accepted null reply, got %+v", reply)
	}

	server.FailInvoke("Orion.Nodes", "Unmanage", http.StatusInternalServerError)
	reply = session.Invoke(ctx, "Orion.Nodes", "Unmanage", "N:42")
	if reply.OK() {
		t.Errorf("expected faulted reply, got %+v", reply)
	}

	server.SetRawReply("Orion.Nodes", "Remanage", "<html>gateway</html>")
	reply = session.Invoke(ctx, "Orion.Nodes", "Remanage", "N:42")
	if reply.OK() {
		t.Errorf("expected decode fault, got %+v", reply)
	}
}

func TestUpdate(t *testing.T) {
	server := swistest.NewServer(testCred.Username, testCred.Password)
	defer server.Close()
	session := openSession(t, server, testCred)

	uri := "swis://orion/Orion/Orion.Nodes/NodeID=42/CustomProperties"
	reply := session.Update(context.Background(), uri, map[string]any{"City": "Oslo"})
	if !reply.OK() {
		t.Fatalf("expected update to succeed, got %v", reply.Err)
	}
	updates := server.Updates()
	if len(updates) != 1 || updates[0].URI != uri || updates[0].Props["City"] != "Oslo" {
		t.Errorf("unexpected updates %+v", updates)
	}

	server.FailUpdates(http.StatusBadRequest)
	if reply := session.Update(context.Background(), uri, map[string]any{"City": "Oslo"}); reply.OK() {
		t.Error("expected update to fail")
	}
}

func TestNewHTTPClient(t *testing.T) {
	if _, err := swis.NewHTTPClient(swis.TransportOptions{Insecure: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := swis.NewHTTPClient(swis.TransportOptions{CAFile: filepath.Join(t.TempDir(), "missing.pem")})
	if !errors.Is(err, swis.ErrClientUnavailable) {
		t.Errorf("expected ErrClientUnavailable for missing bundle, got %v", err)
	}

	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err = swis.NewHTTPClient(swis.TransportOptions{CAFile: garbage})
	if !errors.Is(err, swis.ErrClientUnavailable) {
		t.Errorf("expected ErrClientUnavailable for empty bundle, got %v", err)
	}
}
