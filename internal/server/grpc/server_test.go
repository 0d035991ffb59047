package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestServe_EndToEnd(t *testing.T) {
	signer := newSigner(t)
	sessions := &fakeSessions{signer: signer}
	reg := prometheus.NewRegistry()
	s, err := NewGRPCServer("bufnet", logging.Nop{}, sessions, signer, reg)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()
	client := rpc.NewAuthServiceClient(conn)

	var header metadata.MD
	resp, err := client.Login(context.Background(), &rpc.LoginRequest{Email: "a@x.io", Password: []byte("pw")}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, "u-1", resp.UserID)
	access := header.Get(common.AccessTokenHeaderName)
	refresh := header.Get(common.RefreshTokenHeaderName)
	require.Len(t, access, 1)
	require.Len(t, refresh, 1)

	_, err = client.Self(context.Background())
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	me, err := client.Self(metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, access[0]))
	require.NoError(t, err)
	assert.Equal(t, "alice", me.UserName)

	err = client.Logout(metadata.AppendToOutgoingContext(context.Background(), common.RefreshTokenHeaderName, refresh[0]))
	require.NoError(t, err)
	assert.Equal(t, "r-2", sessions.lastIdentity.RecordID)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "grpc_server_handled_total")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewGRPCServer_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	signer := newSigner(t)
	_, err := NewGRPCServer(":0", logging.Nop{}, &fakeSessions{signer: signer}, signer, reg)
	require.NoError(t, err)
	_, err = NewGRPCServer(":0", logging.Nop{}, &fakeSessions{signer: signer}, signer, reg)
	assert.Error(t, err)
}
