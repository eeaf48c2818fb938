package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab5e/nRF9160-barebone-fota/tlv"
)

func TestEndpointFromDecision(t *testing.T) {
	ep, err := EndpointFromDecision(tlv.Decision{Host: "a.b.c", Port: 5683, Path: "/fw", Scheduled: true}, "")
	require.NoError(t, err)
	assert.Equal(t, Endpoint{Scheme: SchemeCoAP, Host: "a.b.c", Port: 5683, Path: "/fw"}, ep)
	assert.Equal(t, "coap://a.b.c:5683/fw", ep.String())
}

func TestEndpointFromDecisionNotScheduled(t *testing.T) {
	_, err := EndpointFromDecision(tlv.Decision{Host: "a.b.c", Port: 5683, Path: "/fw"}, SchemeCoAP)
	assert.ErrorIs(t, err, ErrNotScheduled)
}

func TestEndpointFromDecisionNoHost(t *testing.T) {
	_, err := EndpointFromDecision(tlv.Decision{Scheduled: true}, SchemeCoAP)
	assert.Error(t, err)
}

func TestEndpointString(t *testing.T) {
	tests := []struct {
		ep   Endpoint
		want string
	}{
		{Endpoint{Scheme: "http", Host: "example.com", Port: 8080, Path: "fw/1"}, "http://example.com:8080/fw/1"},
		{Endpoint{Scheme: "coap", Host: "::1", Port: 5683, Path: "/fw"}, "coap://[::1]:5683/fw"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ep.String())
	}
}
