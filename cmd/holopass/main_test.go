package main

import (
	"bytes"
	"encoding/hex"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellhack-ui/HoloPass/internal/api"
	"github.com/hellhack-ui/HoloPass/internal/auth"
	"github.com/hellhack-ui/HoloPass/internal/service"
	"github.com/hellhack-ui/HoloPass/internal/storage"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := storage.NewDemoStore(time.Now())
	events := service.NewEventService(store, nil, nil)
	services := api.Services{
		Events:   events,
		RSVPs:    service.NewRSVPService(events, store, nil, nil),
		CheckIns: service.NewCheckInService(events, store, nil, nil, false),
		Profiles: service.NewProfileService(store, store),
		Auth: service.NewAuthService(auth.NewMemoryNonceStore(), auth.NewTokenIssuer("secret", time.Hour), store,
			service.AuthOptions{Domain: "holopass.test", URI: "https://holopass.test"}),
		Passports: service.NewPassportService(nil, nil, store, store, 1, false),
	}
	srv := httptest.NewServer(api.NewServer(&api.ServerConfig{Mode: "demo"}, services, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOLOPASS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append(args, "--server", srv.URL))
	err := cmd.Execute()
	return out.String(), err
}

func TestEventsList(t *testing.T) {
	srv := newServer(t)

	out, err := run(t, srv, "events", "list", "--category", "art")
	require.NoError(t, err)
	assert.Contains(t, out, "NFT Art Gallery Opening")
	assert.NotContains(t, out, "DeFi Summit")
}

func TestRSVPAndCheckIn(t *testing.T) {
	srv := newServer(t)
	user := "0x" + strings.Repeat("c", 40)

	out, err := run(t, srv, "rsvp", "create", "demo-1", "--user", user)
	require.NoError(t, err)
	assert.Contains(t, out, "RSVP confirmed for demo-1")

	out, err = run(t, srv, "rsvp", "qr", "demo-1", "--user", user)
	require.NoError(t, err)
	qrData := strings.TrimSpace(strings.Split(out, "\n")[0])

	out, err = run(t, srv, "checkin", "demo-1", "--user", user, "--qr", qrData)
	require.NoError(t, err)
	assert.Contains(t, out, "stamp: Web3 Pioneer (+75 XP)")

	out, err = run(t, srv, "profile", user, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"xp": 75`)
}

func TestCheckInRequiresQR(t *testing.T) {
	srv := newServer(t)
	_, err := run(t, srv, "checkin", "demo-1", "--user", "0x"+strings.Repeat("c", 40))
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	srv := newServer(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	out, err := run(t, srv, "login", "--private-key", hex.EncodeToString(crypto.FromECDSA(key)))
	require.NoError(t, err)
	assert.Contains(t, out, "signed in as "+crypto.PubkeyToAddress(key.PublicKey).Hex())
	assert.Contains(t, out, "export HOLOPASS_TOKEN=")
}

func TestEventNotFound(t *testing.T) {
	srv := newServer(t)
	_, err := run(t, srv, "events", "get", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Event not found")
}
