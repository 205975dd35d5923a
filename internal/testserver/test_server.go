// Package testserver runs the full HTTP stack on an in-memory database.
package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rpggio/batchflow/internal/app"
	"github.com/rpggio/batchflow/internal/domain/worker"
	"github.com/rpggio/batchflow/internal/sqlite"
	"github.com/stretchr/testify/require"
)

// OwnerPIN signs in as the seeded owner.
const OwnerPIN = "1000"

type TestServer struct {
	Server *httptest.Server
	DB     *sqlite.DB
	App    *app.App
	Owner  *worker.Worker
}

func New(t *testing.T) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	a := app.New(db, app.Options{Location: time.UTC, MCPEnabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	go a.Hub.Run(ctx)

	owner := &worker.Worker{
		ID:        "owner",
		Name:      "Owner",
		PIN:       OwnerPIN,
		Role:      worker.RoleOwner,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, sqlite.NewWorkerRepository(db).Create(ctx, owner))

	server := httptest.NewServer(a.Router)
	t.Cleanup(func() {
		server.Close()
		cancel()
		_ = db.Close()
	})

	return &TestServer{Server: server, DB: db, App: a, Owner: owner}
}

// Login returns a client carrying the session cookie for pin.
func (ts *TestServer) Login(t *testing.T, pin string) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	resp, err := client.Post(ts.Server.URL+"/api/auth/login", "application/json",
		strings.NewReader(fmt.Sprintf(`{"pin":%q}`, pin)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	return client
}
