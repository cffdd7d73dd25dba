package history

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportWritesWorkbook(t *testing.T) {
	analytics, conn := newTestAnalytics(t)
	seedHistory(t, conn,
		seedRecord{serial: "S-1", part: "P-1", fulfilled: testNow.Add(-time.Hour), minutes: 42},
		seedRecord{serial: "S-2", part: "P-2", fulfilled: testNow.Add(-2 * time.Hour), minutes: 7},
	)

	buf := &bytes.Buffer{}
	n, err := analytics.Export(context.Background(), ListParams{}, buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "serial_no", rows[0][2])
	assert.Equal(t, "S-1", rows[1][2])
	assert.Equal(t, "42", rows[1][10])
	// 11:00 UTC is 13:00 in Prague during summer time
	assert.Equal(t, "2024-07-15 13:00:00", rows[1][9])
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "requests_history_20240715_120000.xlsx", ExportFileName(testNow))
}
