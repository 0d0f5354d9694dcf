package orchestrator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sysupdater/sysupdater/internal/catalog"
	"github.com/sysupdater/sysupdater/internal/model"
	"github.com/sysupdater/sysupdater/internal/orchestrator"
)

func TestSummary_Record(t *testing.T) {
	t.Parallel()
	s := orchestrator.NewSummary()

	require.True(t, s.Record(t.Context(), orchestrator.Result{ID: catalog.System, Status: orchestrator.Completed, Updated: true}))
	require.False(t, s.Record(t.Context(), orchestrator.Result{ID: catalog.System, Status: orchestrator.Failed}))

	res, ok := s.Result(catalog.System)
	require.True(t, ok)
	require.Equal(t, orchestrator.Completed, res.Status)
	require.Equal(t, 1, s.Len())
	require.False(t, s.Updated(catalog.Flatpak))
}

func TestSummary_Report(t *testing.T) {
	t.Parallel()
	s := orchestrator.NewSummary()
	ctx := t.Context()
	s.Record(ctx, orchestrator.Result{ID: catalog.Firmware, Status: orchestrator.Completed, Reason: "No firmware updates available"})
	s.Record(ctx, orchestrator.Result{ID: catalog.Flatpak, Status: orchestrator.Skipped, Reason: "flatpak not installed"})
	s.Record(ctx, orchestrator.Result{
		ID:       catalog.System,
		Status:   orchestrator.Failed,
		Err:      model.CommandFailed("dnf5 update --refresh -y", 1, ""),
		Duration: 1500 * time.Millisecond,
	})

	rep := s.Report()
	require.Len(t, rep.Operations, 3)
	require.Equal(t, orchestrator.OperationReport{
		ID:       "system",
		Status:   "failed",
		Error:    "command failed: dnf5 update --refresh -y\n  exit code: 1\n  details: ",
		Duration: 1.5,
	}, rep.Operations[0])
	require.Equal(t, "skipped", rep.Operations[1].Status)
	require.Equal(t, "No firmware updates available", rep.Operations[2].Reason)
	require.Len(t, rep.Errors, 1)
}
