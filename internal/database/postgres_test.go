package database

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	var out bytes.Buffer
	logger := newGormLogger(&out)
	query := func() (string, int64) { return "SELECT * FROM attendances WHERE session_id = 1", 0 }

	logger.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
	require.Empty(t, out.String())

	logger.Trace(context.Background(), time.Now(), query, errors.New("connection reset"))
	require.Contains(t, out.String(), "connection reset")
}
