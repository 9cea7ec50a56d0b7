package facade

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zidane0ma/tagflow/internal/normalize"
	"github.com/zidane0ma/tagflow/internal/operations"
	"github.com/zidane0ma/tagflow/internal/storage"
)

func awaitTerminal(t *testing.T, f *Facade, id string) operations.Operation {
	t.Helper()
	require.Eventually(t, func() bool {
		op, ok := f.GetOperationProgress(id)
		return ok && (op.State == operations.StateCompleted || op.State == operations.StateFailed)
	}, 5*time.Second, 10*time.Millisecond)
	op, ok := f.GetOperationProgress(id)
	require.True(t, ok)
	return op
}

func TestFacadeStartOptimizeDatabase(t *testing.T) {
	f := newTestFacade(t)
	id := f.StartOptimizeDatabase(operations.PriorityLow)
	op := awaitTerminal(t, f, id)
	require.Equal(t, operations.StateCompleted, op.State)
}

func TestFacadeStartBackupDatabase(t *testing.T) {
	f := newTestFacade(t)
	dest := filepath.Join(t.TempDir(), "backup.db")
	id := f.StartBackupDatabase(dest, operations.PriorityLow)
	op := awaitTerminal(t, f, id)
	require.Equal(t, operations.StateCompleted, op.State)

	require.Equal(t, dest+".br", op.Result)
	_, err := os.Stat(dest + ".br")
	require.NoError(t, err)
	_, err = os.Stat(dest)
	require.True(t, os.IsNotExist(err), "uncompressed copy is removed after compression")
}

func TestFacadeStartBackupDatabaseDefaultPath(t *testing.T) {
	f := newTestFacade(t)
	id := f.StartBackupDatabase("", operations.PriorityLow)
	op := awaitTerminal(t, f, id)
	require.Equal(t, operations.StateCompleted, op.State)
	path, ok := op.Result.(string)
	require.True(t, ok)
	require.True(t, strings.HasSuffix(path, ".db.br"))
	t.Cleanup(func() { os.Remove(path) })
}

func TestFacadeStartVerifyIntegrity(t *testing.T) {
	f := newTestFacade(t)

	ingestID := f.StartProcessVideos(operations.PriorityMedium)
	awaitTerminal(t, f, ingestID)

	id := f.StartVerifyIntegrity(false, operations.PriorityLow)
	op := awaitTerminal(t, f, id)
	require.Equal(t, operations.StateCompleted, op.State)

	report, ok := op.Result.(storage.IntegrityReport)
	require.True(t, ok)
	require.Equal(t, 1, report.PostsChecked)
	require.Empty(t, report.Issues)
}

func TestFacadeStartAnalyzeVideosRunsOverIngestedMedia(t *testing.T) {
	f := newTestFacade(t)

	ingestID := f.StartProcessVideos(operations.PriorityMedium)
	awaitTerminal(t, f, ingestID)

	id := f.StartAnalyzeVideos(nil, false, operations.PriorityLow)
	op := awaitTerminal(t, f, id)
	require.Equal(t, operations.StateCompleted, op.State)
}

func TestFacadeStartAnalyzeCharacters(t *testing.T) {
	f := newTestFacade(t)

	ingestID := f.StartProcessVideos(operations.PriorityMedium)
	awaitTerminal(t, f, ingestID)

	id := f.StartAnalyzeCharacters(10, operations.PriorityLow)
	op := awaitTerminal(t, f, id)
	require.Equal(t, operations.StateCompleted, op.State)
}

func TestFacadeStartCleanFalsePositivesWithoutForceIsNoop(t *testing.T) {
	f := newTestFacade(t)
	id := f.StartCleanFalsePositives(false, operations.PriorityLow)
	op := awaitTerminal(t, f, id)
	require.Equal(t, operations.StateCompleted, op.State)
	require.Equal(t, 0, op.Result)
}

func TestFacadeStartRegenerateThumbnailsWithoutProducerFails(t *testing.T) {
	f := newTestFacade(t)

	ingestID := f.StartProcessVideos(operations.PriorityMedium)
	awaitTerminal(t, f, ingestID)

	report, _, err := f.engine.Store().FindPost(context.Background(), storage.Filters{}, storage.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, report, 1)

	id := f.StartRegenerateThumbnails([]int64{report[0].Media.ID}, operations.PriorityLow)
	op := awaitTerminal(t, f, id)
	require.Equal(t, operations.StateCompleted, op.State)

	result, ok := op.Result.(normalize.Result)
	require.True(t, ok)
	require.Equal(t, 1, result.Failed, "no thumbnail producer is wired, so generation fails without erroring the operation")
}

func TestFacadeStartPopulateThumbnailsNoProducerCountsFailures(t *testing.T) {
	f := newTestFacade(t)

	ingestID := f.StartProcessVideos(operations.PriorityMedium)
	awaitTerminal(t, f, ingestID)

	id := f.StartPopulateThumbnails("", 0, false, operations.PriorityLow)
	op := awaitTerminal(t, f, id)
	require.Equal(t, operations.StateCompleted, op.State)
}

func TestFacadeStartCleanThumbnailsDryRunCountsOnly(t *testing.T) {
	f := newTestFacade(t)

	require.NoError(t, os.MkdirAll(f.thumbnailsDir, 0o755))
	orphan := filepath.Join(f.thumbnailsDir, "orphan.jpg")
	require.NoError(t, os.WriteFile(orphan, []byte("x"), 0o644))

	id := f.StartCleanThumbnails(false, operations.PriorityLow)
	op := awaitTerminal(t, f, id)
	require.Equal(t, operations.StateCompleted, op.State)
	require.Equal(t, 1, op.Result)

	_, err := os.Stat(orphan)
	require.NoError(t, err, "dry run must not remove the file")
}

func TestFacadeStartCleanThumbnailsForceRemovesOrphans(t *testing.T) {
	f := newTestFacade(t)

	require.NoError(t, os.MkdirAll(f.thumbnailsDir, 0o755))
	orphan := filepath.Join(f.thumbnailsDir, "orphan.jpg")
	require.NoError(t, os.WriteFile(orphan, []byte("x"), 0o644))

	id := f.StartCleanThumbnails(true, operations.PriorityLow)
	op := awaitTerminal(t, f, id)
	require.Equal(t, operations.StateCompleted, op.State)
	require.Equal(t, 1, op.Result)

	_, err := os.Stat(orphan)
	require.True(t, os.IsNotExist(err))
}

func TestFacadeStartClearDatabaseRequiresForce(t *testing.T) {
	f := newTestFacade(t)

	ingestID := f.StartProcessVideos(operations.PriorityMedium)
	awaitTerminal(t, f, ingestID)

	id := f.StartClearDatabase("", false, operations.PriorityLow)
	op := awaitTerminal(t, f, id)
	require.Equal(t, operations.StateFailed, op.State)
	require.NotEmpty(t, op.Error)
}

func TestFacadeStartClearDatabaseForceRemovesPosts(t *testing.T) {
	f := newTestFacade(t)

	ingestID := f.StartProcessVideos(operations.PriorityMedium)
	awaitTerminal(t, f, ingestID)

	id := f.StartClearDatabase("", true, operations.PriorityLow)
	op := awaitTerminal(t, f, id)
	require.Equal(t, operations.StateCompleted, op.State)
	require.Equal(t, 1, op.Result)

	remaining, _, err := f.engine.Store().FindPost(context.Background(), storage.Filters{}, storage.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestFacadeStartPopulateDatabaseFoldersSource(t *testing.T) {
	f := newTestFacade(t)
	id := f.StartPopulateDatabase("folders", "", 0, operations.PriorityMedium)
	op := awaitTerminal(t, f, id)
	require.Equal(t, operations.StateCompleted, op.State)
}
