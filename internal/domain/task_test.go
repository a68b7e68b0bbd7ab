package domain_test

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/review-agent/internal/domain"
)

func TestParseProviderIdentity(t *testing.T) {
	tests := []struct {
		input   string
		want    domain.ProviderIdentity
		wantErr bool
	}{
		{input: "claude", want: domain.ProviderClaude},
		{input: "gemini", want: domain.ProviderGemini},
		{input: "auto", want: domain.ProviderAuto},
		{input: "", wantErr: true},
		{input: "Claude", wantErr: true},
		{input: "gpt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := domain.ParseProviderIdentity(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTaskKind(t *testing.T) {
	for _, valid := range []string{"review", "fix", "respond"} {
		got, err := domain.ParseTaskKind(valid)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskKind(valid), got)
	}

	for _, invalid := range []string{"", "Review", "deploy"} {
		_, err := domain.ParseTaskKind(invalid)
		require.Error(t, err, "expected %q to be rejected", invalid)
	}
}

func TestTaskStateOutcome(t *testing.T) {
	outcomes := map[domain.TaskState]bool{
		domain.TaskStateSpawned:   false,
		domain.TaskStateRunning:   false,
		domain.TaskStateCompleted: true,
		domain.TaskStateFailed:    true,
		domain.TaskStateTimedOut:  true,
		domain.TaskStateCleanedUp: false,
	}
	for state, want := range outcomes {
		assert.Equal(t, want, state.Outcome(), "state %s", state)
	}
}

func TestSpawnErrorWrapsCause(t *testing.T) {
	cause := exec.ErrNotFound
	err := &domain.SpawnError{Tool: "claude", Err: cause}

	assert.Contains(t, err.Error(), "claude")
	assert.True(t, errors.Is(err, exec.ErrNotFound))

	var spawnErr *domain.SpawnError
	require.True(t, errors.As(err, &spawnErr))
	assert.Equal(t, "claude", spawnErr.Tool)
}

func TestValidationErrorMessage(t *testing.T) {
	err := &domain.ValidationError{Field: "branch", Reason: "contains a space"}
	assert.Equal(t, "invalid branch: contains a space", err.Error())
}
