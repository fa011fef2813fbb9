package app

import (
	"context"

	"github.com/dzimika/counter-app-sphere/internal/rpc"
)

// Wire method names.
const (
	MethodGetCount  = "get_count"
	MethodGetRadius = "get_radius"
	MethodSetRadius = "set_radius"
	MethodIncrement = "increment"
	MethodDecrement = "decrement"
)

// SetRadiusOK is the result of a successful set_radius call.
const SetRadiusOK = "Success"

// Methods returns the method table served by svc.
func Methods(svc *Service) []rpc.Method {
	return []rpc.Method{
		{
			Name: MethodGetCount,
			Kind: rpc.KindQuery,
			Handler: func(context.Context, rpc.Params) (any, error) {
				return svc.Count(), nil
			},
		},
		{
			Name: MethodGetRadius,
			Kind: rpc.KindQuery,
			Handler: func(context.Context, rpc.Params) (any, error) {
				return svc.Radius(), nil
			},
		},
		{
			Name: MethodSetRadius,
			Kind: rpc.KindCommand,
			Handler: func(ctx context.Context, params rpc.Params) (any, error) {
				r, err := params.Float(0)
				if err != nil {
					return nil, err
				}
				if err := svc.SetRadius(ctx, r); err != nil {
					return nil, err
				}
				return SetRadiusOK, nil
			},
		},
		{
			Name: MethodIncrement,
			Kind: rpc.KindCommand,
			Handler: func(ctx context.Context, _ rpc.Params) (any, error) {
				return svc.Increment(ctx), nil
			},
		},
		{
			Name: MethodDecrement,
			Kind: rpc.KindCommand,
			Handler: func(ctx context.Context, _ rpc.Params) (any, error) {
				return svc.Decrement(ctx), nil
			},
		},
	}
}

// NewDispatcher returns a dispatcher with the full method table registered.
func NewDispatcher(svc *Service, opts ...rpc.Option) *rpc.Dispatcher {
	d := rpc.NewDispatcher(opts...)
	d.MustRegister(Methods(svc)...)
	return d
}
