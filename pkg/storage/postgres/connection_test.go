package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adminkit/pkg/observability"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestConnectionManager_ReplicaRoundRobin(t *testing.T) {
	primary, _ := newMockDB(t)
	cm := newConnectionManager(ConnectionConfig{}, primary, nil)
	assert.Same(t, primary, cm.Replica(), "falls back to primary")

	r1, _ := newMockDB(t)
	r2, _ := newMockDB(t)
	cm.replicas = []*sql.DB{r1, r2}

	seen := map[*sql.DB]int{}
	for i := 0; i < 4; i++ {
		seen[cm.Replica()]++
	}
	assert.Equal(t, 2, seen[r1])
	assert.Equal(t, 2, seen[r2])
	assert.Zero(t, seen[primary])
}

func TestConnectionManager_HealthCheck(t *testing.T) {
	primary, pmock := newMockDB(t)
	replica, rmock := newMockDB(t)
	cm := newConnectionManager(ConnectionConfig{}, primary, nil)
	cm.replicas = []*sql.DB{replica}

	pmock.ExpectPing()
	rmock.ExpectPing()
	assert.NoError(t, cm.HealthCheck(context.Background()))

	pmock.ExpectPing()
	rmock.ExpectPing().WillReturnError(errors.New("down"))
	assert.ErrorContains(t, cm.HealthCheck(context.Background()), "all replicas unhealthy")

	pmock.ExpectPing().WillReturnError(errors.New("down"))
	assert.ErrorContains(t, cm.HealthCheck(context.Background()), "primary unhealthy")
}

func TestConnectionManager_RemoveUnhealthyReplicas(t *testing.T) {
	primary, _ := newMockDB(t)
	good, gmock := newMockDB(t)
	bad, bmock := newMockDB(t)
	cm := newConnectionManager(ConnectionConfig{}, primary, nil)
	cm.replicas = []*sql.DB{good, bad}

	gmock.ExpectPing()
	bmock.ExpectPing().WillReturnError(errors.New("down"))
	bmock.ExpectClose()

	assert.Equal(t, 1, cm.RemoveUnhealthyReplicas(context.Background()))
	assert.Same(t, good, cm.Replica())
}

func TestConnectionManager_RecordStats(t *testing.T) {
	primary, _ := newMockDB(t)
	replica, _ := newMockDB(t)
	cm := newConnectionManager(ConnectionConfig{}, primary, nil)
	cm.replicas = []*sql.DB{replica}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cm.RecordStats(metrics)

	assert.Equal(t, 2, testutil.CollectAndCount(metrics.DBConnectionsOpen))
}

func TestConnectionManager_Close(t *testing.T) {
	primary, pmock := newMockDB(t)
	replica, rmock := newMockDB(t)
	cm := newConnectionManager(ConnectionConfig{}, primary, nil)
	cm.replicas = []*sql.DB{replica}

	pmock.ExpectClose()
	rmock.ExpectClose()
	require.NoError(t, cm.Close())
	assert.NoError(t, pmock.ExpectationsWereMet())
	assert.NoError(t, rmock.ExpectationsWereMet())
	assert.Same(t, primary, cm.Replica())
}

func TestConnectionConfig_Defaults(t *testing.T) {
	c := ConnectionConfig{}.withDefaults()
	assert.Equal(t, 20, c.MaxConns)
	assert.Positive(t, c.Timeout)

	c = ConnectionConfig{MaxConns: 50}.withDefaults()
	assert.Equal(t, 50, c.MaxConns)
}
