package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverallHealth(t *testing.T) {
	t.Parallel()

	healthy := DependencyStatus{Status: DependencyCheckStatusHealthy}
	unhealthy := DependencyStatus{Status: DependencyCheckStatusUnhealthy}
	disabled := DependencyStatus{Status: DependencyCheckStatusDisabled}

	tests := []struct {
		name     string
		queue    DependencyStatus
		storage  DependencyStatus
		cache    DependencyStatus
		expected HealthResponseStatus
	}{
		{"all healthy", healthy, healthy, healthy, HealthResponseStatusHealthy},
		{"optional dependencies disabled", healthy, disabled, disabled, HealthResponseStatusHealthy},
		{"broker down", unhealthy, healthy, healthy, HealthResponseStatusUnhealthy},
		{"database down", healthy, unhealthy, healthy, HealthResponseStatusUnhealthy},
		{"cache down", healthy, healthy, unhealthy, HealthResponseStatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, OverallHealth(tt.queue, tt.storage, tt.cache))
		})
	}
}

func TestRelayedMessage_HasBody(t *testing.T) {
	t.Parallel()

	assert.True(t, RelayedMessage{Body: []byte(`{"a":1}`)}.HasBody())
	assert.True(t, RelayedMessage{Body: []byte(`false`)}.HasBody())
	assert.False(t, RelayedMessage{Body: []byte(`null`)}.HasBody())
	assert.False(t, RelayedMessage{}.HasBody())
}
