package routing

import "context"

// CallMeta identifies the provider request a routing decision is made for.
// Webhook handlers attach it; override audit events carry it.
type CallMeta struct {
	CallSid  string
	SourceIP string
}

type callMetaKey struct{}

func WithCallMeta(ctx context.Context, m CallMeta) context.Context {
	if m == (CallMeta{}) {
		return ctx
	}
	return context.WithValue(ctx, callMetaKey{}, m)
}

func CallMetaFrom(ctx context.Context) CallMeta {
	m, _ := ctx.Value(callMetaKey{}).(CallMeta)
	return m
}
