package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/helixml/cinerag/domain/search"
	"github.com/stretchr/testify/assert"
)

func TestProviderError_UnavailableWithCause(t *testing.T) {
	tests := []struct {
		name   string
		status int
		cause  error
		want   bool
	}{
		{"unreachable", 0, errors.New("dial tcp: connection refused"), true},
		{"rate limited", http.StatusTooManyRequests, nil, true},
		{"server error", http.StatusBadGateway, nil, true},
		{"bad request", http.StatusBadRequest, nil, false},
		{"unauthorized", http.StatusUnauthorized, nil, false},
		{"cancelled", 0, context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewProviderError("chat", tt.status, "failed", tt.cause)

			assert.Equal(t, tt.want, err.Unavailable())
			assert.Equal(t, tt.want, errors.Is(err, search.ErrUpstreamUnavailable))
		})
	}
}
