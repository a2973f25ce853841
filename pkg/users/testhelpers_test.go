package users

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/platinummonkey/adminkit/pkg/events"
	"github.com/stretchr/testify/require"
)

const sqliteUsersSchema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	password TEXT NOT NULL,
	avatar TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	gender INTEGER NOT NULL DEFAULT 0,
	phone TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 0,
	is_deleted INTEGER NOT NULL DEFAULT 0,
	role_id INTEGER,
	create_time DATETIME NOT NULL,
	update_time DATETIME NOT NULL
);
CREATE UNIQUE INDEX users_name_live ON users (name) WHERE is_deleted = 0;
`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec(sqliteUsersSchema)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

// plainHasher keeps tests fast; bcrypt is covered in pkg/auth.
type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "plain:" + plain, nil }
func (plainHasher) Verify(plain, digest string) bool  { return digest == "plain:"+plain }

type recordedEvent struct {
	action events.Action
	event  events.UserEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishUser(_ context.Context, action events.Action, e events.UserEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{action: action, event: e})
	return nil
}

func (p *recordingPublisher) Close() {}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateUsers(context.Context) error {
	c.calls++
	return nil
}

type memoryAvatars struct {
	keys []string
}

func (m *memoryAvatars) PutAvatar(_ context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	m.keys = append(m.keys, key)
	return "https://cdn.example.com/" + key, nil
}

func mustSignup(t *testing.T, svc *Service, names ...string) []*User {
	t.Helper()
	var out []*User
	for _, name := range names {
		u, err := svc.Signup(context.Background(), SignupInput{Name: name, Password: strings.Repeat("x", 6)})
		require.NoError(t, err)
		out = append(out, u)
	}
	return out
}
