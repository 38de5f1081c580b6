package db

import (
	"fmt"
	"testing"

	"fund_ledger/internal/config"
	"fund_ledger/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingWriter struct {
	lines []string
}

func (w *recordingWriter) Printf(format string, args ...any) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func TestGormLogger_SkipsMissingRows(t *testing.T) {
	conn, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	rec := &recordingWriter{}
	session := conn.Session(&gorm.Session{Logger: newGormLogger(rec)})

	err = session.Where("fundName = ?", "nope").First(&domain.Fund{}).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, rec.lines, "a lookup with no match is not logged")

	err = session.Exec("SELECT * FROM missing_table").Error
	require.Error(t, err)
	assert.NotEmpty(t, rec.lines, "query errors are still logged")
}

func TestMySQLDSN(t *testing.T) {
	cfg := &config.Config{DBUser: "ledger", DBPassword: "secret", DBHost: "db", DBPort: "3306", DBName: "fund_ledger"}
	assert.Equal(t, "ledger:secret@tcp(db:3306)/fund_ledger?parseTime=true&clientFoundRows=true", MySQLDSN(cfg))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "postgres"})
	assert.EqualError(t, err, `unsupported DB driver "postgres"`)
}
