// Package grpccas serves a storage.CAS over gRPC and provides the matching
// client, so several verifier hosts can share one definition store.
package grpccas

import (
	"context"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"ckbecs.dev/ecs/cidutil"
	"ckbecs.dev/ecs/storage"
)

// DialOptions configure a Client.
type DialOptions struct {
	// Timeout bounds each RPC when non-zero.
	Timeout time.Duration

	// MaxMsgBytes caps request and response size when non-zero. Put
	// refuses larger objects before sending them.
	MaxMsgBytes int

	// Extra is appended after the default dial options.
	Extra []grpc.DialOption
}

// Client is a storage.CAS backed by a remote CAS service. The server is not
// trusted: the CID of every stored object is recomputed locally and every
// fetched object is hashed before it is returned.
type Client struct {
	target string
	cc     *grpc.ClientConn
	opts   DialOptions
}

var _ storage.CAS = (*Client)(nil)

// Dial creates a client for target. No connection is made until the first
// call.
func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
			grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
		))
	}
	cc, err := grpc.NewClient(target, append(dialOpts, opts.Extra...)...)
	if err != nil {
		return nil, fmt.Errorf("grpccas: dial %s: %w", target, err)
	}
	return &Client{target: target, cc: cc, opts: opts}, nil
}

// Target returns the address the client was created for.
func (c *Client) Target() string { return c.target }

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Put stores data and returns its CID once the server has confirmed the
// same CID.
func (c *Client) Put(data []byte) (cid.Cid, error) {
	if c.opts.MaxMsgBytes > 0 && len(data) > c.opts.MaxMsgBytes {
		return cid.Undef, fmt.Errorf("grpccas: put to %s: object of %d bytes exceeds the %d byte message limit", c.target, len(data), c.opts.MaxMsgBytes)
	}
	want, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	var reply wrapperspb.StringValue
	if err := c.call(methodPut, wrapperspb.Bytes(data), &reply); err != nil {
		return cid.Undef, fmt.Errorf("grpccas: put %s to %s: %w", want, c.target, err)
	}
	got, err := cid.Decode(reply.GetValue())
	if err != nil || !got.Defined() {
		return cid.Undef, fmt.Errorf("grpccas: put %s to %s: server answered %q: %w", want, c.target, reply.GetValue(), storage.ErrInvalidCID)
	}
	if got != want {
		return cid.Undef, fmt.Errorf("grpccas: put %s to %s: server stored it as %s: %w", want, c.target, got, storage.ErrCIDMismatch)
	}
	return got, nil
}

// Get fetches the object named by id and checks it hashes to id.
func (c *Client) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	var reply wrapperspb.BytesValue
	if err := c.call(methodGet, wrapperspb.String(id.String()), &reply); err != nil {
		return nil, fmt.Errorf("grpccas: get %s from %s: %w", id, c.target, err)
	}
	b := reply.GetValue()
	got, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, fmt.Errorf("grpccas: get %s from %s: %d bytes hash to %s: %w", id, c.target, len(b), got, storage.ErrCIDMismatch)
	}
	return b, nil
}

// Has reports false on transport errors.
func (c *Client) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	var reply wrapperspb.BoolValue
	if err := c.call(methodHas, wrapperspb.String(id.String()), &reply); err != nil {
		return false
	}
	return reply.GetValue()
}

// call invokes one unary method and maps its status back to a storage
// sentinel.
func (c *Client) call(method string, in, out any) error {
	ctx := context.Background()
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	return mapRPC(c.cc.Invoke(ctx, method, in, out))
}
