package grpccas

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"ckbecs.dev/ecs/cidutil"
	"ckbecs.dev/ecs/storage"
	"ckbecs.dev/ecs/storage/localfs"
	"ckbecs.dev/ecs/storage/testkit"
)

// serve starts a CAS service over an in-memory listener and returns a client
// connected to it.
func serve(t *testing.T, backend storage.CAS) *Client {
	t.Helper()
	return serveWith(t, backend, DialOptions{Timeout: 2 * time.Second})
}

func serveWith(t *testing.T, backend storage.CAS, opts DialOptions) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(zerolog.Nop())))
	RegisterCASServer(srv, &Server{CAS: backend})
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	opts.Extra = append(opts.Extra, grpc.WithContextDialer(dialer))
	client, err := Dial("passthrough:///bufnet", opts)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return serve(t, testkit.NewMemory())
	})
}

func TestGRPCCAS_LocalFS_RoundTrip(t *testing.T) {
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	client := serve(t, cas)

	payload := []byte("hello grpccas")
	id, err := client.Put(payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !client.Has(id) {
		t.Fatalf("Has: expected true")
	}
	got, err := client.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch")
	}
	if !cas.Has(id) {
		t.Fatalf("object did not reach the backend")
	}
}

// tampering returns the wrong bytes for every Get.
type tampering struct{ *testkit.Memory }

func (tampering) Get(cid.Cid) ([]byte, error) { return []byte("tampered"), nil }

func TestGRPCCAS_DetectsTamperedObjects(t *testing.T) {
	backend := tampering{testkit.NewMemory()}
	client := serve(t, backend)
	id, err := client.Put([]byte("genuine"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := client.Get(id); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
}

func TestErrorMapping_RoundTrips(t *testing.T) {
	for _, s := range statusOf {
		wire := mapErr(s.err)
		if status.Code(wire) != s.code {
			t.Fatalf("%v: got code %s want %s", s.err, status.Code(wire), s.code)
		}
		if back := mapRPC(wire); !errors.Is(back, s.err) {
			t.Fatalf("%v: mapped back to %v", s.err, back)
		}
	}
	if status.Code(mapErr(errors.New("disk on fire"))) != codes.Internal {
		t.Fatalf("unknown errors must map to Internal")
	}
}

func TestClient_ErrorsNameObjectAndTarget(t *testing.T) {
	client := serve(t, testkit.NewMemory())
	id, err := cidutil.CIDv1RawSHA256CID([]byte("never stored"))
	if err != nil {
		t.Fatalf("cid: %v", err)
	}
	_, err = client.Get(id)
	if !storage.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, id.String()) || !strings.Contains(msg, client.Target()) {
		t.Fatalf("error does not name object and target: %q", msg)
	}
}

func TestClient_RefusesOversizedObjects(t *testing.T) {
	backend := testkit.NewMemory()
	client := serveWith(t, backend, DialOptions{Timeout: 2 * time.Second, MaxMsgBytes: 128})
	if _, err := client.Put(make([]byte, 129)); err == nil || !strings.Contains(err.Error(), "message limit") {
		t.Fatalf("expected size error, got %v", err)
	}
	if backend.Len() != 0 {
		t.Fatalf("oversized object reached the backend")
	}
	if _, err := client.Put(make([]byte, 32)); err != nil {
		t.Fatalf("Put within limit: %v", err)
	}
}
