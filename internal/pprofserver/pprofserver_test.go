package pprofserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yusco/siteaudit/internal/testhelpers"
)

func TestCheckLoopback(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{addr: "[::1]:6060"},
		{addr: "127.0.0.1:6060"},
		{addr: "localhost:6060"},
		{addr: ":6060", wantErr: true},
		{addr: "0.0.0.0:6060", wantErr: true},
		{addr: "10.1.2.3:6060", wantErr: true},
		{addr: "no-port", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			t.Parallel()
			err := checkLoopback(tt.addr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLaunch_rejectsPublicAddress(t *testing.T) {
	err := Launch(context.Background(), "0.0.0.0:0", testhelpers.NewLogger(io.Discard))
	require.ErrorIs(t, err, ErrNotLoopback)
}

func TestNewServeMux(t *testing.T) {
	_, pattern := newServeMux().Handler(httptest.NewRequest(http.MethodGet, "/debug/pprof/heap", nil))
	require.Equal(t, "/debug/pprof/", pattern)
}
