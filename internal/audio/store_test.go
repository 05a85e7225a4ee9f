package audio

import (
	"time"

	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectNameEmbedsFileID(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	fileID := "file_1700000000000_deadbeef"

	name := ObjectName("0xAbCd000000000000000000000000000000000001", fileID, "Quarterly Report.txt", now)

	assert.Contains(t, name, fileID)
	assert.Contains(t, name, "0xabcd000000000000000000000000000000000001")
	assert.Contains(t, name, "quarterly_report")
	assert.NotContains(t, name, " ")
	assert.NotContains(t, name, ".txt")
	assert.Regexp(t, `\.mp3$`, name)

	got, err := FileIDFromName(name)
	require.NoError(t, err)
	assert.Equal(t, fileID, got)
}

func TestObjectNameCollapsesUnsafeRuns(t *testing.T) {
	now := time.Unix(1700000000, 0)
	name := ObjectName("0xAb", "file_1700000000000_00112233", "weird   name!!.mp3", now)

	assert.NotContains(t, name, "__")
	assert.NotContains(t, name, "!")
}

func TestFileIDFromNameRejectsForeignNames(t *testing.T) {
	_, err := FileIDFromName("random_object.mp3")
	assert.Error(t, err)

	_, err = FileIDFromName("wallet_file_123_zz_audio.mp3")
	assert.Error(t, err)
}
