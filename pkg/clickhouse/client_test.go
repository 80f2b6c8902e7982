package clickhouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:         "ch",
		Port:         9000,
		Database:     "screener",
		User:         "u",
		Password:     "p",
		DialTimeout:  time.Second,
		AsyncInsert:  true,
		WaitForAsync: true,
	})
	assert.Equal(t, "clickhouse://u:p@ch:9000/screener?dial_timeout=1s&async_insert=1&wait_for_async_insert=1", dsn)

	dsn = buildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "db", UseHTTP: true})
	assert.Equal(t, "clickhouse+http://:@ch:8123/db", dsn)
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient(WithDatabase("screener"))
	assert.Error(t, err)
}

func TestInitSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	c := NewFromDB(db, "screener")

	stmts := Schema("screener")
	require.Len(t, stmts, 4)
	for range stmts[:2] {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS screener.indicator_values").
		WillReturnError(errors.New("readonly"))

	err = c.InitSchema(context.Background(), stmts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init schema")
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectClose()
	assert.NoError(t, c.Close())
}
