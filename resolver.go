package agent

import "context"

// Resolver returns the broker URI to dial. It is consulted on every connect
// attempt, so a broker that moved is picked up on the next reconnect.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// ResolverFunc allows a plain function to be used as a Resolver.
type ResolverFunc func(ctx context.Context) (string, error)

// Resolve implements Resolver on ResolverFunc.
func (f ResolverFunc) Resolve(ctx context.Context) (string, error) { return f(ctx) }

// StaticResolver always resolves to uri.
func StaticResolver(uri string) Resolver {
	return ResolverFunc(func(context.Context) (string, error) { return uri, nil })
}
