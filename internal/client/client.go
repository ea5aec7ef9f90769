// Package client is a thin gRPC client for the taskdesk services.
package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gurkanbulca/taskdesk/internal/service"
)

type Client struct {
	conn        grpc.ClientConnInterface
	accessToken string
}

func New(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// SetToken makes subsequent calls authenticate with accessToken.
func (c *Client) SetToken(accessToken string) { c.accessToken = accessToken }

func (c *Client) Token() string { return c.accessToken }

// Call invokes service/method with req as the request message.
func (c *Client) Call(ctx context.Context, svc, method string, req map[string]any) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if c.accessToken != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.accessToken)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, service.FullMethod(svc, method), in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Login authenticates and keeps the access token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (map[string]any, error) {
	resp, err := c.Call(ctx, service.AuthServiceName, "Login", map[string]any{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	token, ok := resp["accessToken"].(string)
	if !ok || token == "" {
		return nil, errors.New("login response carries no access token")
	}
	c.accessToken = token
	return resp, nil
}

func (c *Client) Auth(ctx context.Context, method string, req map[string]any) (map[string]any, error) {
	return c.Call(ctx, service.AuthServiceName, method, req)
}

func (c *Client) Users(ctx context.Context, method string, req map[string]any) (map[string]any, error) {
	return c.Call(ctx, service.UserServiceName, method, req)
}

func (c *Client) Tasks(ctx context.Context, method string, req map[string]any) (map[string]any, error) {
	return c.Call(ctx, service.TaskServiceName, method, req)
}
